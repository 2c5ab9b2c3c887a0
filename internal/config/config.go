// Package config provides the configuration schema, loader, and provider
// registry for the Stratus chat server.
package config

import (
	"time"

	"github.com/stratus-ai/stratus/internal/mcp"
)

// LogLevel controls log verbosity for the Stratus server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [LoadFromReader] for fields left at their zero value.
const (
	// DefaultMaxIterations bounds the tool-use round trips in one chat turn.
	DefaultMaxIterations = 5

	// DefaultIterationDelay is the pause inserted before every iteration
	// after the first, easing throttling pressure on the model backend.
	DefaultIterationDelay = 200 * time.Millisecond

	// DefaultThrottleBackoff is the wait before the single retry after a
	// throttled model call.
	DefaultThrottleBackoff = 2 * time.Second

	// DefaultCoordPrecision is the number of decimal digits coordinates are
	// rounded to when building forecast cache keys.
	DefaultCoordPrecision = 2

	// DefaultForecastMaxAge is the freshness window for cached forecasts.
	DefaultForecastMaxAge = 30 * time.Minute

	// DefaultAlertsMaxAge is the freshness window for cached alert feeds.
	DefaultAlertsMaxAge = 15 * time.Minute
)

// Config is the root configuration structure for Stratus.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Providers    ProvidersConfig    `yaml:"providers"`
	MCP          MCPConfig          `yaml:"mcp"`
	Cache        CacheConfig        `yaml:"cache"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

// ServerConfig holds network and logging settings for the Stratus server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares the LLM backend used for chat completion, plus an
// ordered list of fallbacks tried in turn when the primary fails.
type ProvidersConfig struct {
	// LLM is the primary chat-completion backend.
	LLM ProviderEntry `yaml:"llm"`

	// Fallbacks are tried in order when the primary provider fails.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// ProviderEntry is the configuration block for one LLM backend.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "anthropic", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "claude-3-5-sonnet-20240620", "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// MCPConfig declares which MCP tool servers to connect to and which built-in
// toolsets to register in-process.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`

	// Builtin lists in-process toolsets to register ("weather", "time").
	// An empty list registers all of them.
	Builtin []string `yaml:"builtin"`
}

// MCPServerConfig describes how to connect to a single MCP tool server.
type MCPServerConfig struct {
	// Name is a unique human-readable identifier for this server (used in logs).
	Name string `yaml:"name"`

	// Transport specifies the connection mechanism.
	Transport mcp.Transport `yaml:"transport"`

	// Command is the executable (with optional arguments) launched when
	// Transport is "stdio". Ignored for streamable-http transport.
	Command string `yaml:"command"`

	// URL is the MCP endpoint address used when Transport is "streamable-http"
	// (e.g., "https://mcp.example.com/mcp"). Ignored for stdio transport.
	URL string `yaml:"url"`

	// Env holds additional environment variables injected into the subprocess
	// when Transport is "stdio". May be nil.
	Env map[string]string `yaml:"env"`
}

// CacheConfig tunes the tool-response cache.
type CacheConfig struct {
	// CoordPrecision is the number of decimal digits coordinates are rounded
	// to when building forecast cache keys. Nearby coordinates that round to
	// the same value share one entry.
	CoordPrecision int `yaml:"coord_precision"`

	// ForecastMaxAge is the freshness window for cached forecasts.
	ForecastMaxAge time.Duration `yaml:"forecast_max_age"`

	// AlertsMaxAge is the freshness window for cached alert feeds.
	AlertsMaxAge time.Duration `yaml:"alerts_max_age"`
}

// OrchestratorConfig tunes the tool-use loop.
type OrchestratorConfig struct {
	// MaxIterations bounds the model-call / tool-execution round trips
	// within a single chat turn.
	MaxIterations int `yaml:"max_iterations"`

	// IterationDelay is the pause inserted before every iteration after the
	// first.
	IterationDelay time.Duration `yaml:"iteration_delay"`

	// ThrottleBackoff is the wait before the single retry after a throttled
	// model call.
	ThrottleBackoff time.Duration `yaml:"throttle_backoff"`

	// SystemPrompt is prepended to the generated system context. Leave empty
	// to use only the generated context (current time, tool guidance,
	// resource list).
	SystemPrompt string `yaml:"system_prompt"`
}
