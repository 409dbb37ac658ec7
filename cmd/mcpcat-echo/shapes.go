package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	mcpcat "github.com/mcpcat/mcpcat-go-sdk"
)

func newShapesCmd() *cobra.Command {
	var hint string

	cmd := &cobra.Command{
		Use:   "shapes",
		Short: "List supported MCP server shapes",
		Long: `List the server libraries mcpcat can instrument, in detection order.

Examples:
  mcpcat-echo shapes
  mcpcat-echo shapes --hint github.com/mark3labs/mcp-go@v0.43.0`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			shapes := mcpcat.Shapes()

			if hint != "" {
				d, ok := mcpcat.LookupShape(hint)
				if !ok {
					return fmt.Errorf("no shape matches %q", hint)
				}

				shapes = []mcpcat.ShapeDescriptor{*d}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFLAVOR\tLIBRARY\tVERSIONS\tINTENT")

			for _, d := range shapes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", d.Name, d.Flavor, d.Library, d.Range(), d.IntentCapture)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&hint, "hint", "", "show only the shape matching module[@version]")

	return cmd
}
