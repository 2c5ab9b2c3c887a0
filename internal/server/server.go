// Package server exposes the Stratus HTTP API.
//
// Handlers are deliberately thin: request decoding, client IP extraction,
// and response encoding live here, while all conversation semantics live in
// [orchestrator.Orchestrator]. The cache and activity log endpoints are
// read-mostly inspection surfaces for operators and the bundled chat page.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stratus-ai/stratus/internal/activity"
	"github.com/stratus-ai/stratus/internal/cache"
	"github.com/stratus-ai/stratus/internal/config"
	"github.com/stratus-ai/stratus/internal/health"
	"github.com/stratus-ai/stratus/internal/mcp"
	"github.com/stratus-ai/stratus/internal/observe"
	"github.com/stratus-ai/stratus/internal/orchestrator"
	"github.com/stratus-ai/stratus/pkg/provider/llm"
)

//go:embed static
var staticFiles embed.FS

// defaultSweepMaxAge applies to POST /cache/sweep when the request does not
// specify max_age_minutes.
const defaultSweepMaxAge = 60 * time.Minute

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// ChatRunner is the slice of the orchestrator the chat handler needs.
type ChatRunner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// Options holds the dependencies for a [Server].
type Options struct {
	Config   *config.Config
	Runner   ChatRunner
	Provider llm.Provider
	Host     mcp.Host
	Cache    *cache.Store
	Activity *activity.Log
	Health   *health.Handler
	Metrics  *observe.Metrics
}

// Server routes the Stratus HTTP API.
type Server struct {
	cfg      *config.Config
	runner   ChatRunner
	provider llm.Provider
	host     mcp.Host
	cache    *cache.Store
	activity *activity.Log
	metrics  *observe.Metrics

	mux  *http.ServeMux
	http *http.Server
}

// New assembles the API router. Health may be nil, in which case the probe
// endpoints are not registered.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("server: Config is required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("server: Runner is required")
	}
	if opts.Cache == nil || opts.Activity == nil {
		return nil, fmt.Errorf("server: Cache and Activity are required")
	}

	s := &Server{
		cfg:      opts.Config,
		runner:   opts.Runner,
		provider: opts.Provider,
		host:     opts.Host,
		cache:    opts.Cache,
		activity: opts.Activity,
		metrics:  opts.Metrics,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /models", s.handleModels)
	s.mux.HandleFunc("GET /tools", s.handleTools)
	s.mux.HandleFunc("GET /cache", s.handleCacheList)
	s.mux.HandleFunc("POST /cache/sweep", s.handleCacheSweep)
	s.mux.HandleFunc("GET /log", s.handleLog)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	if opts.Health != nil {
		opts.Health.Register(s.mux)
	}

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("server: static assets: %w", err)
	}
	s.mux.Handle("GET /", http.FileServerFS(static))

	var handler http.Handler = s.mux
	if opts.Metrics != nil {
		handler = observe.Middleware(opts.Metrics)(handler)
	}

	s.http = &http.Server{
		Addr:              opts.Config.Server.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the assembled HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe starts serving and blocks until ctx is cancelled or the
// listener fails. On cancellation the server drains in-flight requests for
// up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := s.cfg.Server.TLS; tls != nil {
			err = s.http.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = s.http.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen on %s: %w", s.http.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// ─── Chat ────────────────────────────────────────────────────────────────────

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Response   string `json:"response"`
	Iterations int    `json:"iterations"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	msgs := make([]llm.Message, 0, len(req.Messages))
	for i, m := range req.Messages {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("messages[%d]: role must be %q or %q", i, llm.RoleUser, llm.RoleAssistant))
			return
		}
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}

	if s.metrics != nil {
		s.metrics.ActiveChats.Add(r.Context(), 1)
		defer s.metrics.ActiveChats.Add(r.Context(), -1)
	}

	result, err := s.runner.Run(r.Context(), orchestrator.Request{
		Messages:    msgs,
		ClientIP:    clientIP(r),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		observe.Logger(r.Context()).Error("chat turn failed", "err", err)
		writeError(w, http.StatusBadGateway, "chat backend failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:   result.Response,
		Iterations: result.Iterations,
	})
}

// ─── Models ──────────────────────────────────────────────────────────────────

type modelInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type modelsResponse struct {
	Primary      modelInfo   `json:"primary"`
	Fallbacks    []modelInfo `json:"fallbacks"`
	Capabilities *struct {
		ContextWindow       int  `json:"context_window"`
		MaxOutputTokens     int  `json:"max_output_tokens"`
		SupportsToolCalling bool `json:"supports_tool_calling"`
	} `json:"capabilities,omitempty"`
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	resp := modelsResponse{
		Primary: modelInfo{
			Provider: s.cfg.Providers.LLM.Name,
			Model:    s.cfg.Providers.LLM.Model,
		},
		Fallbacks: []modelInfo{},
	}
	for _, fb := range s.cfg.Providers.Fallbacks {
		resp.Fallbacks = append(resp.Fallbacks, modelInfo{Provider: fb.Name, Model: fb.Model})
	}
	if s.provider != nil {
		caps := s.provider.Capabilities()
		resp.Capabilities = &struct {
			ContextWindow       int  `json:"context_window"`
			MaxOutputTokens     int  `json:"max_output_tokens"`
			SupportsToolCalling bool `json:"supports_tool_calling"`
		}{
			ContextWindow:       caps.ContextWindow,
			MaxOutputTokens:     caps.MaxOutputTokens,
			SupportsToolCalling: caps.SupportsToolCalling,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Tool catalogue ──────────────────────────────────────────────────────────

type toolInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Calls       int64   `json:"calls"`
	Errors      int64   `json:"errors"`
	P50Ms       int64   `json:"p50_ms"`
	P99Ms       int64   `json:"p99_ms"`
	ErrorRate   float64 `json:"error_rate"`
}

type toolsResponse struct {
	Count int        `json:"count"`
	Tools []toolInfo `json:"tools"`
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	resp := toolsResponse{Tools: []toolInfo{}}
	if s.host != nil {
		stats := s.host.Stats()
		for _, def := range s.host.Tools() {
			info := toolInfo{Name: def.Name, Description: def.Description}
			if st, ok := stats[def.Name]; ok {
				info.Calls = st.Calls
				info.Errors = st.Errors
				info.P50Ms = st.P50Ms
				info.P99Ms = st.P99Ms
				info.ErrorRate = st.ErrorRate
			}
			resp.Tools = append(resp.Tools, info)
		}
	}
	resp.Count = len(resp.Tools)
	writeJSON(w, http.StatusOK, resp)
}

// ─── Cache inspection ────────────────────────────────────────────────────────

type cacheListResponse struct {
	Count   int               `json:"count"`
	Entries []cache.EntryInfo `json:"entries"`
}

func (s *Server) handleCacheList(w http.ResponseWriter, _ *http.Request) {
	entries := s.cache.Entries()
	writeJSON(w, http.StatusOK, cacheListResponse{
		Count:   len(entries),
		Entries: entries,
	})
}

type sweepResponse struct {
	Removed       int `json:"removed"`
	MaxAgeMinutes int `json:"max_age_minutes"`
}

func (s *Server) handleCacheSweep(w http.ResponseWriter, r *http.Request) {
	maxAge := defaultSweepMaxAge
	if raw := r.URL.Query().Get("max_age_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes < 0 {
			writeError(w, http.StatusBadRequest, "max_age_minutes must be a non-negative integer")
			return
		}
		maxAge = time.Duration(minutes) * time.Minute
	}

	removed := s.cache.Sweep(maxAge)
	writeJSON(w, http.StatusOK, sweepResponse{
		Removed:       removed,
		MaxAgeMinutes: int(maxAge.Minutes()),
	})
}

// ─── Activity log ────────────────────────────────────────────────────────────

type logResponse struct {
	Count   int              `json:"count"`
	Entries []activity.Entry `json:"entries"`
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries := s.activity.Entries(limit)
	writeJSON(w, http.StatusOK, logResponse{
		Count:   len(entries),
		Entries: entries,
	})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// clientIP extracts the originating client address, preferring the first
// X-Forwarded-For hop over the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
