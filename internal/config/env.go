package config

import "strings"

// Environment variables read by ApplyEnv.
const (
	EnvAPIURL    = "MCPCAT_API_URL"
	EnvAPIKey    = "MCPCAT_API_KEY"
	EnvProjectID = "MCPCAT_PROJECT_ID"
	EnvDebugMode = "MCPCAT_DEBUG_MODE"
)

// ApplyEnv fills unset connection fields from the environment. A project id
// without an endpoint selects DefaultEndpoint.
func (o *Options) ApplyEnv(getenv func(string) string) {
	if o.Endpoint == "" {
		o.Endpoint = getenv(EnvAPIURL)
	}

	if o.APIKey == "" {
		o.APIKey = getenv(EnvAPIKey)
	}

	if o.ProjectID == "" {
		o.ProjectID = getenv(EnvProjectID)
	}

	if o.Endpoint == "" && o.ProjectID != "" {
		o.Endpoint = DefaultEndpoint
	}
}

// DebugEnabled reports whether MCPCAT_DEBUG_MODE is truthy.
func DebugEnabled(getenv func(string) string) bool {
	switch strings.ToLower(strings.TrimSpace(getenv(EnvDebugMode))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
