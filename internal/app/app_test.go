package app

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stratus-ai/stratus/internal/config"
	mcpmock "github.com/stratus-ai/stratus/internal/mcp/mock"
	"github.com/stratus-ai/stratus/pkg/provider/llm"
	llmmock "github.com/stratus-ai/stratus/pkg/provider/llm/mock"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":0", LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "anthropic", Model: "claude-sonnet-4-20250514"},
		},
		Cache: config.CacheConfig{
			CoordPrecision: config.DefaultCoordPrecision,
			ForecastMaxAge: config.DefaultForecastMaxAge,
			AlertsMaxAge:   config.DefaultAlertsMaxAge,
		},
		Orchestrator: config.OrchestratorConfig{
			MaxIterations:   config.DefaultMaxIterations,
			IterationDelay:  config.DefaultIterationDelay,
			ThrottleBackoff: config.DefaultThrottleBackoff,
		},
	}
}

func TestNew_WithInjectedDoubles(t *testing.T) {
	p := &llmmock.Provider{Turns: []llmmock.Turn{
		{Response: &llm.CompletionResponse{StopReason: llm.StopEnd, Content: "hi there"}},
	}}
	h := &mcpmock.Host{ToolsResult: []llm.ToolDefinition{{Name: "get_alerts"}}}

	a, err := New(context.Background(), baseConfig(), nil, WithProvider(p), WithMCPHost(h))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	// The wired handler answers a chat request end to end.
	req := httptest.NewRequest("POST", "/chat",
		strings.NewReader(`{"messages": [{"role": "user", "content": "hello"}]}`))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("POST /chat = %d, want 200; body: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "hi there") {
		t.Errorf("chat body = %s, want model reply", rec.Body)
	}
}

func TestNew_RegistersBuiltinToolsets(t *testing.T) {
	p := &llmmock.Provider{}

	a, err := New(context.Background(), baseConfig(), nil, WithProvider(p))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	names := make(map[string]bool)
	for _, def := range a.host.Tools() {
		names[def.Name] = true
	}
	for _, want := range []string{"get_alerts", "get_forecast", "get_current_time"} {
		if !names[want] {
			t.Errorf("builtin tool %q not registered (have %v)", want, names)
		}
	}

	uris := make(map[string]bool)
	for _, res := range a.host.Resources() {
		uris[res.URI] = true
	}
	for _, want := range []string{"weather://regions", "time://usage"} {
		if !uris[want] {
			t.Errorf("builtin resource %q not registered (have %v)", want, uris)
		}
	}
}

func TestNew_SelectiveBuiltin(t *testing.T) {
	cfg := baseConfig()
	cfg.MCP.Builtin = []string{BuiltinTime}

	a, err := New(context.Background(), cfg, nil, WithProvider(&llmmock.Provider{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	for _, def := range a.host.Tools() {
		if def.Name == "get_alerts" || def.Name == "get_forecast" {
			t.Errorf("weather tool %q registered despite builtin selection", def.Name)
		}
	}
}

func TestNew_UnknownBuiltin(t *testing.T) {
	cfg := baseConfig()
	cfg.MCP.Builtin = []string{"astrology"}

	if _, err := New(context.Background(), cfg, nil, WithProvider(&llmmock.Provider{})); err == nil {
		t.Error("New accepted an unknown builtin toolset")
	}
}

func TestNew_RequiresRegistryWithoutProvider(t *testing.T) {
	if _, err := New(context.Background(), baseConfig(), nil, WithMCPHost(&mcpmock.Host{})); err == nil {
		t.Error("New accepted nil registry without an injected provider")
	}
}

func TestApplyConfig_SwapsOrchestrator(t *testing.T) {
	a, err := New(context.Background(), baseConfig(), nil,
		WithProvider(&llmmock.Provider{}), WithMCPHost(&mcpmock.Host{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	before := a.runner.ptr.Load()

	// An unchanged config must not rebuild the loop.
	a.ApplyConfig(baseConfig())
	if a.runner.ptr.Load() != before {
		t.Error("orchestrator rebuilt for an unchanged config")
	}

	// A tuning change swaps in a new loop.
	changed := baseConfig()
	changed.Orchestrator.MaxIterations = 8
	a.ApplyConfig(changed)
	if a.runner.ptr.Load() == before {
		t.Error("orchestrator not rebuilt after tuning change")
	}
}

func TestApplyConfig_LogLevel(t *testing.T) {
	var level slog.LevelVar
	level.Set(slog.LevelInfo)

	a, err := New(context.Background(), baseConfig(), nil,
		WithProvider(&llmmock.Provider{}), WithMCPHost(&mcpmock.Host{}),
		WithLogLevelVar(&level))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	changed := baseConfig()
	changed.Server.LogLevel = config.LogDebug
	a.ApplyConfig(changed)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug after reload", level.Level())
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	a, err := New(context.Background(), baseConfig(), nil,
		WithProvider(&llmmock.Provider{}), WithMCPHost(&mcpmock.Host{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
