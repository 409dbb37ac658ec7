package config

import (
	"net/url"

	"github.com/mcpcat/mcpcat-go-sdk/internal/errors"
)

// Validate checks resolved options.
func (o *Options) Validate() error {
	if !o.HasDestination() {
		return errors.ErrMissingDestination
	}

	if o.Endpoint != "" {
		u, err := url.Parse(o.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &errors.ConfigError{Field: "Endpoint", Reason: "must be an absolute http(s) URL"}
		}
	}

	positive := []struct {
		field string
		ok    bool
	}{
		{"MaxBatchSize", o.MaxBatchSize > 0},
		{"MaxBatchDelay", o.MaxBatchDelay > 0},
		{"BufferCapacity", o.BufferCapacity > 0},
		{"MaxAttempts", o.MaxAttempts > 0},
		{"InitialBackoff", o.InitialBackoff > 0},
		{"MaxBackoff", o.MaxBackoff >= o.InitialBackoff},
		{"BackoffMultiplier", o.BackoffMultiplier >= 1},
		{"ShutdownTimeout", o.ShutdownTimeout > 0},
	}

	for _, p := range positive {
		if !p.ok {
			return &errors.ConfigError{Field: p.field, Reason: "out of range"}
		}
	}

	return nil
}
