package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	mcpcat "github.com/mcpcat/mcpcat-go-sdk"
)

// settings is the resolved CLI configuration.
type settings struct {
	Endpoint          string                    `mapstructure:"endpoint"`
	APIKey            string                    `mapstructure:"api_key"`
	ProjectID         string                    `mapstructure:"project_id"`
	BatchSize         int                       `mapstructure:"batch_size"`
	BatchDelay        time.Duration             `mapstructure:"batch_delay"`
	CaptureIntent     bool                      `mapstructure:"capture_intent"`
	RedactArguments   bool                      `mapstructure:"redact_arguments"`
	RedactionPatterns []mcpcat.RedactionPattern `mapstructure:"redaction_patterns"`
	LogEvents         bool                      `mapstructure:"log_events"`
	Debug             bool                      `mapstructure:"debug"`
	Tracing           mcpcat.TracingConfig      `mapstructure:"tracing"`
}

// options converts settings into tracker options.
func (s settings) options(log *slog.Logger) []mcpcat.Option {
	opts := []mcpcat.Option{
		mcpcat.WithLogger(log),
		mcpcat.WithCaptureIntent(s.CaptureIntent),
		mcpcat.WithRedactArguments(s.RedactArguments),
		mcpcat.WithTracing(s.Tracing),
	}

	if s.Endpoint != "" {
		opts = append(opts, mcpcat.WithEndpoint(s.Endpoint))
	}

	if s.APIKey != "" {
		opts = append(opts, mcpcat.WithAPIKey(s.APIKey))
	}

	if s.ProjectID != "" {
		opts = append(opts, mcpcat.WithProjectID(s.ProjectID))
	}

	if s.BatchSize > 0 {
		opts = append(opts, mcpcat.WithMaxBatchSize(s.BatchSize))
	}

	if s.BatchDelay > 0 {
		opts = append(opts, mcpcat.WithMaxBatchDelay(s.BatchDelay))
	}

	if len(s.RedactionPatterns) > 0 {
		opts = append(opts, mcpcat.WithRedactionPatterns(s.RedactionPatterns...))
	}

	if s.LogEvents {
		opts = append(opts, mcpcat.WithOnEvent(func(ev mcpcat.UsageEvent) {
			log.Info("Tool call",
				"tool", ev.ToolName,
				"sequence", ev.Sequence,
				"outcome", ev.Outcome,
				"duration", ev.Duration,
			)
		}))
	}

	return opts
}

func newRootCmd(version string) *cobra.Command {
	v := viper.New()

	var cfgFile string

	root := &cobra.Command{
		Use:           "mcpcat-echo",
		Short:         "Demo MCP server instrumented with mcpcat",
		Long:          `mcpcat-echo serves a small echo toolset over stdio and reports every tool call to MCPcat or an OpenTelemetry collector.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initConfig(v, cfgFile)
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/mcpcat/config.yaml)")

	root.AddCommand(newServeCmd(v), newShapesCmd())

	return root
}

// initConfig layers defaults, the optional config file and MCPCAT_*
// environment variables into v. Flags are bound by each subcommand.
func initConfig(v *viper.Viper, cfgFile string) error {
	tracing := mcpcat.TracingConfig{Exporter: "stdout", ServiceName: "mcpcat-echo", SessionTTL: 30 * time.Minute}

	for _, key := range []string{"endpoint", "api_key", "project_id", "tracing.otlp_endpoint"} {
		v.SetDefault(key, "")
	}

	for _, key := range []string{"capture_intent", "redact_arguments", "debug", "tracing.insecure"} {
		v.SetDefault(key, false)
	}

	v.SetDefault("batch_size", 0)
	v.SetDefault("batch_delay", time.Duration(0))
	v.SetDefault("log_events", true)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", tracing.Exporter)
	v.SetDefault("tracing.service_name", tracing.ServiceName)
	v.SetDefault("tracing.session_ttl", tracing.SessionTTL)

	v.SetEnvPrefix("MCPCAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("endpoint", "MCPCAT_ENDPOINT", "MCPCAT_API_URL")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "mcpcat"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok || cfgFile != "" {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	return nil
}

func loadSettings(v *viper.Viper) (settings, error) {
	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("decoding config: %w", err)
	}

	return s, nil
}

// newLogger writes to stderr; stdout carries the MCP stream.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
