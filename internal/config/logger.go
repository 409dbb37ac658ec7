package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// DebugLogFile is the file name of the debug log in the home directory.
const DebugLogFile = "mcpcat.log"

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ResolveLogger returns o.Logger, or a JSON debug logger appending to
// ~/mcpcat.log when MCPCAT_DEBUG_MODE is set, or a no-op logger. The returned
// closer releases the debug log file.
func (o *Options) ResolveLogger(getenv func(string) string) (*slog.Logger, io.Closer) {
	if o.Logger != nil {
		return o.Logger, nopCloser{}
	}

	if !DebugEnabled(getenv) {
		return NopLogger(), nopCloser{}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return NopLogger(), nopCloser{}
	}

	f, err := os.OpenFile(filepath.Join(home, DebugLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return NopLogger(), nopCloser{}
	}

	return slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})), f
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
