package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stratus-ai/stratus/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: debug
providers:
  llm:
    name: anthropic
    api_key: sk-test
    model: claude-3-5-sonnet-20240620
  fallbacks:
    - name: openai
      model: gpt-4o
mcp:
  servers:
    - name: weather
      transport: stdio
      command: /usr/local/bin/stratus-mcp
      env:
        LOG_LEVEL: debug
  builtin: [time]
cache:
  coord_precision: 3
  forecast_max_age: 45m
  alerts_max_age: 10m
orchestrator:
  max_iterations: 7
  iteration_delay: 100ms
  throttle_backoff: 3s
  system_prompt: "You are a weather assistant."
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Providers.LLM.Name != "anthropic" || cfg.Providers.LLM.Model != "claude-3-5-sonnet-20240620" {
		t.Errorf("providers.llm = %+v", cfg.Providers.LLM)
	}
	if len(cfg.Providers.Fallbacks) != 1 || cfg.Providers.Fallbacks[0].Name != "openai" {
		t.Errorf("fallbacks = %+v", cfg.Providers.Fallbacks)
	}
	if len(cfg.MCP.Servers) != 1 || cfg.MCP.Servers[0].Env["LOG_LEVEL"] != "debug" {
		t.Errorf("mcp.servers = %+v", cfg.MCP.Servers)
	}
	if cfg.Cache.CoordPrecision != 3 || cfg.Cache.ForecastMaxAge != 45*time.Minute {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Orchestrator.MaxIterations != 7 || cfg.Orchestrator.IterationDelay != 100*time.Millisecond {
		t.Errorf("orchestrator = %+v", cfg.Orchestrator)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: anthropic
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Orchestrator.MaxIterations != config.DefaultMaxIterations {
		t.Errorf("MaxIterations = %d, want %d", cfg.Orchestrator.MaxIterations, config.DefaultMaxIterations)
	}
	if cfg.Orchestrator.IterationDelay != config.DefaultIterationDelay {
		t.Errorf("IterationDelay = %v", cfg.Orchestrator.IterationDelay)
	}
	if cfg.Orchestrator.ThrottleBackoff != config.DefaultThrottleBackoff {
		t.Errorf("ThrottleBackoff = %v", cfg.Orchestrator.ThrottleBackoff)
	}
	if cfg.Cache.CoordPrecision != config.DefaultCoordPrecision {
		t.Errorf("CoordPrecision = %d", cfg.Cache.CoordPrecision)
	}
	if cfg.Cache.ForecastMaxAge != config.DefaultForecastMaxAge {
		t.Errorf("ForecastMaxAge = %v", cfg.Cache.ForecastMaxAge)
	}
	if cfg.Cache.AlertsMaxAge != config.DefaultAlertsMaxAge {
		t.Errorf("AlertsMaxAge = %v", cfg.Cache.AlertsMaxAge)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("expected log_level error, got: %v", err)
	}
}

func TestValidate_StdioRequiresCommand(t *testing.T) {
	t.Parallel()
	yaml := `
mcp:
  servers:
    - name: weather
      transport: stdio
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "command is required") {
		t.Errorf("expected command-required error, got: %v", err)
	}
}

func TestValidate_StreamableHTTPRequiresURL(t *testing.T) {
	t.Parallel()
	yaml := `
mcp:
  servers:
    - name: remote
      transport: streamable-http
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "url is required") {
		t.Errorf("expected url-required error, got: %v", err)
	}
}

func TestValidate_DuplicateServerNames(t *testing.T) {
	t.Parallel()
	yaml := `
mcp:
  servers:
    - name: weather
      transport: stdio
      command: /bin/one
    - name: weather
      transport: stdio
      command: /bin/two
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate error, got: %v", err)
	}
}

func TestValidate_UnknownBuiltinToolset(t *testing.T) {
	t.Parallel()
	yaml := `
mcp:
  builtin: [weather, stocks]
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "stocks") {
		t.Errorf("expected unknown-toolset error, got: %v", err)
	}
}

func TestValidate_FallbackRequiresName(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: anthropic
  fallbacks:
    - model: gpt-4o
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "fallbacks[0].name") {
		t.Errorf("expected fallback-name error, got: %v", err)
	}
}

func TestValidate_CoordPrecisionRange(t *testing.T) {
	t.Parallel()
	yaml := `
cache:
  coord_precision: 9
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "coord_precision") {
		t.Errorf("expected coord_precision error, got: %v", err)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_address: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}
