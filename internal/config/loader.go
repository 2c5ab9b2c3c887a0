package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/stratus-ai/stratus/internal/mcp"
)

// ValidLLMProviderNames lists known LLM provider names.
// Used by [Validate] to warn about unrecognised provider names.
var ValidLLMProviderNames = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq",
}

// ValidBuiltinToolsets lists the in-process toolsets [Config.MCP.Builtin]
// may reference.
var ValidBuiltinToolsets = []string{"weather", "time"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued tuning fields with the package defaults.
func applyDefaults(cfg *Config) {
	if cfg.Orchestrator.MaxIterations == 0 {
		cfg.Orchestrator.MaxIterations = DefaultMaxIterations
	}
	if cfg.Orchestrator.IterationDelay == 0 {
		cfg.Orchestrator.IterationDelay = DefaultIterationDelay
	}
	if cfg.Orchestrator.ThrottleBackoff == 0 {
		cfg.Orchestrator.ThrottleBackoff = DefaultThrottleBackoff
	}
	if cfg.Cache.CoordPrecision == 0 {
		cfg.Cache.CoordPrecision = DefaultCoordPrecision
	}
	if cfg.Cache.ForecastMaxAge == 0 {
		cfg.Cache.ForecastMaxAge = DefaultForecastMaxAge
	}
	if cfg.Cache.AlertsMaxAge == 0 {
		cfg.Cache.AlertsMaxAge = DefaultAlertsMaxAge
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Providers
	validateProviderName("providers.llm", cfg.Providers.LLM.Name)
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; chat requests will fail")
	}
	for i, entry := range cfg.Providers.Fallbacks {
		prefix := fmt.Sprintf("providers.fallbacks[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName(prefix, entry.Name)
	}

	// Orchestrator
	if cfg.Orchestrator.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("orchestrator.max_iterations %d must be ≥ 1", cfg.Orchestrator.MaxIterations))
	}
	if cfg.Orchestrator.IterationDelay < 0 {
		errs = append(errs, fmt.Errorf("orchestrator.iteration_delay must not be negative"))
	}
	if cfg.Orchestrator.ThrottleBackoff < 0 {
		errs = append(errs, fmt.Errorf("orchestrator.throttle_backoff must not be negative"))
	}

	// Cache
	if cfg.Cache.CoordPrecision < 0 || cfg.Cache.CoordPrecision > 6 {
		errs = append(errs, fmt.Errorf("cache.coord_precision %d is out of range [0, 6]", cfg.Cache.CoordPrecision))
	}
	if cfg.Cache.ForecastMaxAge < 0 || cfg.Cache.AlertsMaxAge < 0 {
		errs = append(errs, fmt.Errorf("cache freshness windows must not be negative"))
	}

	// MCP servers
	serverNamesSeen := make(map[string]int, len(cfg.MCP.Servers))
	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := serverNamesSeen[srv.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of mcp.servers[%d]", prefix, srv.Name, prev))
			}
			serverNamesSeen[srv.Name] = i
		}
		if srv.Transport != "" && !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == mcp.TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == mcp.TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	}

	// Builtin toolsets
	for _, name := range cfg.MCP.Builtin {
		if !slices.Contains(ValidBuiltinToolsets, name) {
			errs = append(errs, fmt.Errorf("mcp.builtin toolset %q is unknown; valid values: %v", name, ValidBuiltinToolsets))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidLLMProviderNames].
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(ValidLLMProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidLLMProviderNames,
	)
}
