// Package shape is the registry of supported MCP server shapes.
//
// Each Descriptor names the capabilities a server must expose, how tool
// dispatch is intercepted, and how a call's tool name and arguments are read
// from the library's request type. The table is fixed at compile time and
// read-only afterwards.
package shape

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
)

// Flavor tags the structural family of a server.
type Flavor string

const (
	// FlavorFastMCP is a high-level server with a managed tool registry.
	FlavorFastMCP Flavor = "fastmcp"
	// FlavorLowLevel is a request-router server dispatching raw protocol methods.
	FlavorLowLevel Flavor = "lowlevel"
)

// Hook identifies the interception point a library offers.
type Hook string

const (
	// HookToolHandlerMiddleware wraps mark3labs/mcp-go tool handlers.
	HookToolHandlerMiddleware Hook = "tool-handler-middleware"
	// HookToolMiddleware wraps ToolServer dispatch.
	HookToolMiddleware Hook = "tool-middleware"
	// HookReceivingMiddleware wraps go-sdk incoming method handlers.
	HookReceivingMiddleware Hook = "receiving-middleware"
)

// Capability is one structural requirement, probed by a Go type assertion.
type Capability struct {
	Name  string
	Probe func(server any) bool
}

// Call is what an Adapter extracts from a tool call request.
type Call struct {
	ToolName      string
	Arguments     map[string]any
	MCPSessionID  string
	ClientName    string
	ClientVersion string
}

// Adapter reads the tool name and arguments from a library request value.
type Adapter func(ctx context.Context, req any) (Call, error)

// Descriptor identifies one supported server flavor and library range.
type Descriptor struct {
	// Name is the short registry key (e.g. "go-sdk").
	Name string
	// Flavor is the structural family.
	Flavor Flavor
	// Library is the Go module path providing the server.
	Library string
	// MinVersion is the lowest supported module version, inclusive.
	MinVersion string
	// MaxVersion is the first unsupported module version. Empty means open.
	MaxVersion string
	// ToolsMember names the member that registers tools.
	ToolsMember string
	// DispatchMember names the dispatch entry point that is wrapped.
	DispatchMember string
	// Requires lists the capabilities probed during detection.
	Requires []Capability
	// Hook is the interception point used by the installer.
	Hook Hook
	// Adapter extracts call metadata from the dispatch request.
	Adapter Adapter
	// IntentCapture reports whether tool schemas can be extended with a
	// user intent parameter.
	IntentCapture bool
}

// CapabilityNames returns the names of the required capabilities.
func (d Descriptor) CapabilityNames() []string {
	out := make([]string, 0, len(d.Requires))
	for _, c := range d.Requires {
		out = append(out, c.Name)
	}

	return out
}

// Missing returns the names of the capabilities server does not expose.
func (d Descriptor) Missing(server any) []string {
	var missing []string

	for _, c := range d.Requires {
		if !c.Probe(server) {
			missing = append(missing, c.Name)
		}
	}

	return missing
}

// Supports reports whether version falls in the descriptor's range.
// Unparseable or empty versions are accepted.
func (d Descriptor) Supports(version string) bool {
	v := canonical(version)
	if v == "" {
		return true
	}

	if d.MinVersion != "" && semver.Compare(v, d.MinVersion) < 0 {
		return false
	}

	if d.MaxVersion != "" && semver.Compare(v, d.MaxVersion) >= 0 {
		return false
	}

	return true
}

// Range renders the supported version range.
func (d Descriptor) Range() string {
	switch {
	case d.MinVersion == "" && d.MaxVersion == "":
		return "any"
	case d.MaxVersion == "":
		return ">= " + d.MinVersion
	case d.MinVersion == "":
		return "< " + d.MaxVersion
	default:
		return fmt.Sprintf(">= %s, < %s", d.MinVersion, d.MaxVersion)
	}
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s (%s %s)", d.Name, d.Library, d.Range())
}

// All returns a copy of every descriptor in priority order.
func All() []Descriptor {
	out := make([]Descriptor, len(registry))
	copy(out, registry)

	for i := range out {
		out[i].Requires = slices.Clone(out[i].Requires)
	}

	return out
}

// ByName returns the descriptor with the given registry name.
// Returns nil if no descriptor is found.
func ByName(name string) *Descriptor {
	for i := range registry {
		if registry[i].Name == name {
			d := registry[i]

			return &d
		}
	}

	return nil
}

// Lookup resolves a library version hint to a descriptor. The hint has the
// form "library[@version]" where library is a module path or registry name,
// for example "github.com/modelcontextprotocol/go-sdk@v1.3.1" or "mcp-go".
// It checks in order:
//  1. Exact match on registry name
//  2. Exact match on module path
//  3. Module path prefix (for package import paths like ".../go-sdk/mcp")
//
// The version, when present, must fall within the descriptor's range.
// Returns nil if no descriptor matches.
func Lookup(hint string) *Descriptor {
	library, version, _ := strings.Cut(strings.TrimSpace(hint), "@")
	if library == "" {
		return nil
	}

	match := func(ok func(d *Descriptor) bool) *Descriptor {
		for i := range registry {
			if ok(&registry[i]) && registry[i].Supports(version) {
				d := registry[i]

				return &d
			}
		}

		return nil
	}

	if d := match(func(d *Descriptor) bool { return d.Name == library }); d != nil {
		return d
	}

	if d := match(func(d *Descriptor) bool { return d.Library == library }); d != nil {
		return d
	}

	return match(func(d *Descriptor) bool {
		return strings.HasPrefix(library, d.Library+"/")
	})
}

// Supported lists every descriptor with its version range, for diagnostics.
func Supported() []string {
	out := make([]string, 0, len(registry))
	for _, d := range registry {
		out = append(out, fmt.Sprintf("%s %s", d.Name, d.Range()))
	}

	return out
}

func canonical(version string) string {
	if version == "" {
		return ""
	}

	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}

	if !semver.IsValid(version) {
		return ""
	}

	return semver.Canonical(version)
}
