// Package app wires all Stratus subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems (model provider with fallbacks, MCP host with built-in
// toolsets, cache, activity log, orchestrator, HTTP server), Run serves the
// HTTP API until the context is cancelled, and Shutdown tears everything
// down in order.
//
// For testing, inject doubles via functional options (WithProvider,
// WithMCPHost, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/stratus-ai/stratus/internal/activity"
	"github.com/stratus-ai/stratus/internal/cache"
	"github.com/stratus-ai/stratus/internal/config"
	"github.com/stratus-ai/stratus/internal/health"
	"github.com/stratus-ai/stratus/internal/mcp"
	"github.com/stratus-ai/stratus/internal/mcp/mcphost"
	"github.com/stratus-ai/stratus/internal/mcp/tools/localtime"
	"github.com/stratus-ai/stratus/internal/mcp/tools/weather"
	"github.com/stratus-ai/stratus/internal/observe"
	"github.com/stratus-ai/stratus/internal/orchestrator"
	"github.com/stratus-ai/stratus/internal/resilience"
	"github.com/stratus-ai/stratus/internal/server"
	"github.com/stratus-ai/stratus/pkg/provider/llm"
)

// Builtin toolset names accepted in config.MCP.Builtin.
const (
	BuiltinWeather = "weather"
	BuiltinTime    = "time"
)

// runnerHolder is an atomically swappable orchestrator, so config reloads
// can replace the loop tuning without restarting the HTTP server.
type runnerHolder struct {
	ptr atomic.Pointer[orchestrator.Orchestrator]
}

var _ server.ChatRunner = (*runnerHolder)(nil)

func (h *runnerHolder) Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	return h.ptr.Load().Run(ctx, req)
}

// App owns all subsystem lifetimes for the Stratus chat service.
type App struct {
	cfg      *config.Config
	provider llm.Provider
	host     mcp.Host
	cache    *cache.Store
	activity *activity.Log
	metrics  *observe.Metrics
	runner   *runnerHolder
	srv      *server.Server

	// logLevel, when set, is adjusted on config reload.
	logLevel *slog.LevelVar

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithProvider injects a model provider instead of creating one from the
// config registry.
func WithProvider(p llm.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithMCPHost injects an MCP host instead of creating one from config.
func WithMCPHost(h mcp.Host) Option {
	return func(a *App) { a.host = h }
}

// WithMetrics injects a metrics instance instead of using the global one.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevelVar hands the App the level var behind the process logger, so
// config reloads can adjust verbosity in place.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// New creates an App by wiring all subsystems together. The registry maps
// provider names from the config to constructors; main.go registers the real
// backends there.
func New(ctx context.Context, cfg *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		cache:    cache.New(),
		activity: activity.New(),
		runner:   &runnerHolder{},
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initProvider(registry); err != nil {
		return nil, fmt.Errorf("app: init provider: %w", err)
	}
	if err := a.initMCP(ctx); err != nil {
		return nil, fmt.Errorf("app: init mcp: %w", err)
	}
	if err := a.initOrchestrator(); err != nil {
		return nil, fmt.Errorf("app: init orchestrator: %w", err)
	}
	if err := a.initServer(); err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}
	return a, nil
}

// initProvider builds the primary model backend and wraps it with the
// circuit-breaker fallback group when fallbacks are configured.
func (a *App) initProvider(registry *config.Registry) error {
	if a.provider != nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("a provider registry is required when no provider is injected")
	}

	primary, err := registry.CreateLLM(a.cfg.Providers.LLM)
	if err != nil {
		return fmt.Errorf("create primary %q: %w", a.cfg.Providers.LLM.Name, err)
	}

	if len(a.cfg.Providers.Fallbacks) == 0 {
		a.provider = primary
		return nil
	}

	group := resilience.NewLLMFallback(primary, a.cfg.Providers.LLM.Name, resilience.FallbackConfig{})
	for _, entry := range a.cfg.Providers.Fallbacks {
		fb, err := registry.CreateLLM(entry)
		if err != nil {
			return fmt.Errorf("create fallback %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, fb)
		slog.Info("registered fallback provider", "name", entry.Name, "model", entry.Model)
	}
	a.provider = group
	return nil
}

// initMCP sets up the MCP host, registers built-in toolsets, and connects
// the configured external servers.
func (a *App) initMCP(ctx context.Context) error {
	if a.host == nil {
		host := mcphost.New()
		a.host = host
		a.closers = append(a.closers, host.Close)

		if err := registerBuiltins(host, a.cfg.MCP.Builtin); err != nil {
			return err
		}
	}

	for _, srv := range a.cfg.MCP.Servers {
		serverCfg := mcp.ServerConfig{
			Name:      srv.Name,
			Transport: srv.Transport,
			Command:   srv.Command,
			URL:       srv.URL,
			Env:       srv.Env,
		}
		if err := a.host.RegisterServer(ctx, serverCfg); err != nil {
			return fmt.Errorf("register mcp server %q: %w", srv.Name, err)
		}
		slog.Info("registered MCP server", "name", srv.Name)
	}
	return nil
}

// registerBuiltins registers the requested in-process toolsets on host. An
// empty list registers all of them.
func registerBuiltins(host *mcphost.Host, names []string) error {
	if len(names) == 0 {
		names = []string{BuiltinWeather, BuiltinTime}
	}
	for _, name := range names {
		switch name {
		case BuiltinWeather:
			client := weather.NewClient("", nil)
			for _, tool := range weather.Tools(client) {
				if err := host.RegisterBuiltin(tool); err != nil {
					return fmt.Errorf("register weather tool: %w", err)
				}
			}
			for _, res := range weather.Resources() {
				if err := host.RegisterBuiltinResource(res); err != nil {
					return fmt.Errorf("register weather resource: %w", err)
				}
			}
		case BuiltinTime:
			resolver := localtime.NewResolver("", "", nil)
			for _, tool := range localtime.Tools(resolver) {
				if err := host.RegisterBuiltin(tool); err != nil {
					return fmt.Errorf("register time tool: %w", err)
				}
			}
			for _, res := range localtime.Resources() {
				if err := host.RegisterBuiltinResource(res); err != nil {
					return fmt.Errorf("register time resource: %w", err)
				}
			}
		default:
			return fmt.Errorf("unknown builtin toolset %q", name)
		}
		slog.Info("registered builtin toolset", "name", name)
	}
	return nil
}

// initOrchestrator builds the tool-use loop and installs it in the runner
// holder.
func (a *App) initOrchestrator() error {
	orch, err := orchestrator.New(orchestrator.Options{
		Provider: a.provider,
		Host:     a.host,
		Cache:    a.cache,
		Activity: a.activity,
		Config:   a.cfg.Orchestrator,
		Policies: orchestrator.DefaultPolicies(a.cfg.Cache),
		Metrics:  a.metrics,
	})
	if err != nil {
		return err
	}
	a.runner.ptr.Store(orch)
	return nil
}

// initServer assembles the HTTP API.
func (a *App) initServer() error {
	checker := health.New(
		health.Checker{
			Name: "mcp_host",
			Check: func(context.Context) error {
				if len(a.host.Tools()) == 0 {
					return fmt.Errorf("no tools registered")
				}
				return nil
			},
		},
		health.Checker{
			Name: "provider",
			Check: func(context.Context) error {
				if !a.provider.Capabilities().SupportsToolCalling {
					return fmt.Errorf("model backend does not support tool calling")
				}
				return nil
			},
		},
	)

	srv, err := server.New(server.Options{
		Config:   a.cfg,
		Runner:   a.runner,
		Provider: a.provider,
		Host:     a.host,
		Cache:    a.cache,
		Activity: a.activity,
		Health:   checker,
		Metrics:  a.metrics,
	})
	if err != nil {
		return err
	}
	a.srv = srv
	return nil
}

// Runner returns the chat runner serving /chat, for tests.
func (a *App) Runner() server.ChatRunner {
	return a.runner
}

// Handler returns the HTTP handler, for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run serves the HTTP API and blocks until ctx is cancelled or the listener
// fails.
func (a *App) Run(ctx context.Context) error {
	slog.Info("stratus serving",
		"addr", a.cfg.Server.ListenAddr,
		"tools", len(a.host.Tools()),
		"resources", len(a.host.Resources()),
	)
	return a.srv.ListenAndServe(ctx)
}

// ApplyConfig hot-applies the safely reloadable parts of a new config: log
// level, loop tuning, cache tuning, and the system prompt. Provider and MCP
// server changes require a restart and are ignored here.
func (a *App) ApplyConfig(newCfg *config.Config) {
	diff := config.Diff(a.cfg, newCfg)
	if !diff.Any() {
		return
	}

	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level updated", "level", diff.NewLogLevel)
	}

	if diff.OrchestratorChanged || diff.CacheChanged || diff.SystemPromptChanged {
		orch, err := orchestrator.New(orchestrator.Options{
			Provider: a.provider,
			Host:     a.host,
			Cache:    a.cache,
			Activity: a.activity,
			Config:   newCfg.Orchestrator,
			Policies: orchestrator.DefaultPolicies(newCfg.Cache),
			Metrics:  a.metrics,
		})
		if err != nil {
			slog.Error("config reload: rebuilding orchestrator failed", "err", err)
		} else {
			a.runner.ptr.Store(orch)
			slog.Info("orchestrator tuning updated")
		}
	}

	a.cfg = newCfg
}

// slogLevel maps a config log level to its slog equivalent.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
