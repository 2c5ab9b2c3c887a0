// Package orchestrator implements the tool-use loop at the heart of Stratus.
//
// A single [Orchestrator.Run] call drives one chat turn: the conversation is
// submitted to the model, and as long as the model stops to request tool
// calls, the orchestrator executes them (through the MCP host, fronted by the
// response cache) and feeds the results back, up to a fixed iteration budget.
// Tool results are delivered as a single user-role message whose entries are
// correlated to the requesting calls by ID.
//
// The loop consults a per-tool [ToolPolicy] table to decide caching and
// client-IP injection, appends every conversation event to the activity log,
// and retries a throttled model call exactly once after a fixed backoff.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/stratus-ai/stratus/internal/activity"
	"github.com/stratus-ai/stratus/internal/cache"
	"github.com/stratus-ai/stratus/internal/config"
	"github.com/stratus-ai/stratus/internal/mcp"
	"github.com/stratus-ai/stratus/internal/observe"
	"github.com/stratus-ai/stratus/pkg/provider/llm"
)

// ExhaustedMessage is returned when the iteration budget runs out while the
// model is still requesting tool calls.
const ExhaustedMessage = "Maximum iterations reached while processing tool calls."

// readResourceToolName is the pseudo-tool offered to the model for reading
// MCP resources. It is handled by the orchestrator itself and never reaches
// the MCP host's tool dispatch.
const readResourceToolName = "read_resource"

// Options configures a new [Orchestrator]. Provider, Host, Cache, and
// Activity are required.
type Options struct {
	// Provider is the model backend.
	Provider llm.Provider

	// Host executes tool calls and resource reads.
	Host mcp.Host

	// Cache fronts tool invocations for tools with a cache category.
	Cache *cache.Store

	// Activity receives one entry per conversation event.
	Activity *activity.Log

	// Config tunes the loop. Zero-valued fields fall back to the package
	// defaults in [config].
	Config config.OrchestratorConfig

	// Policies is the per-tool descriptor table. When nil,
	// [DefaultPolicies] with default cache tuning is used.
	Policies map[string]ToolPolicy

	// Metrics is optional; when nil no metrics are recorded.
	Metrics *observe.Metrics
}

// Request is one chat turn to drive through the loop.
type Request struct {
	// Messages is the conversation so far, ending with the user's latest
	// message.
	Messages []llm.Message

	// ClientIP is the caller's IP address, injected into tools whose policy
	// sets NeedsClientIP when the model did not supply one. May be empty.
	ClientIP string

	// Temperature and MaxTokens are passed through to the model.
	Temperature float64
	MaxTokens   int
}

// Result is the outcome of one completed chat turn.
type Result struct {
	// Response is the final assistant text.
	Response string

	// Iterations is the number of model round trips consumed.
	Iterations int
}

// Orchestrator drives chat turns through the model / tool loop.
// It is safe for concurrent use.
type Orchestrator struct {
	provider llm.Provider
	host     mcp.Host
	cache    *cache.Store
	activity *activity.Log
	cfg      config.OrchestratorConfig
	policies map[string]ToolPolicy
	metrics  *observe.Metrics

	// group deduplicates concurrent fetches for the same cache key.
	group singleflight.Group

	// sleep and now are overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates an Orchestrator from opts.
func New(opts Options) (*Orchestrator, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("orchestrator: Provider is required")
	}
	if opts.Host == nil {
		return nil, fmt.Errorf("orchestrator: Host is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("orchestrator: Cache is required")
	}
	if opts.Activity == nil {
		return nil, fmt.Errorf("orchestrator: Activity is required")
	}

	cfg := opts.Config
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = config.DefaultMaxIterations
	}
	if cfg.IterationDelay == 0 {
		cfg.IterationDelay = config.DefaultIterationDelay
	}
	if cfg.ThrottleBackoff == 0 {
		cfg.ThrottleBackoff = config.DefaultThrottleBackoff
	}

	policies := opts.Policies
	if policies == nil {
		policies = DefaultPolicies(config.CacheConfig{
			CoordPrecision: config.DefaultCoordPrecision,
			ForecastMaxAge: config.DefaultForecastMaxAge,
			AlertsMaxAge:   config.DefaultAlertsMaxAge,
		})
	}

	return &Orchestrator{
		provider: opts.Provider,
		host:     opts.Host,
		cache:    opts.Cache,
		activity: opts.Activity,
		cfg:      cfg,
		policies: policies,
		metrics:  opts.Metrics,
		sleep:    sleepCtx,
		now:      time.Now,
	}, nil
}

// Run drives one chat turn to completion. It returns an error only for
// request-level failures (cancelled context, provider hard failure); tool
// failures are reported to the model in-band and the soft iteration-budget
// exhaustion returns [ExhaustedMessage] as the response.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("orchestrator: request has no messages")
	}

	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)

	if last := msgs[len(msgs)-1]; last.Role == llm.RoleUser && last.Content != "" {
		o.activity.Append(activity.RoleUser, last.Content)
	}

	tools := append(o.host.Tools(), readResourceDefinition())
	system := o.systemPrompt()

	iterations := 0
	for i := 0; i < o.cfg.MaxIterations; i++ {
		iterations = i + 1

		// Small pause between round trips eases throttling pressure.
		if i > 0 {
			if err := o.sleep(ctx, o.cfg.IterationDelay); err != nil {
				return nil, err
			}
		}

		resp, err := o.complete(ctx, llm.CompletionRequest{
			Messages:     msgs,
			Tools:        tools,
			Temperature:  req.Temperature,
			MaxTokens:    req.MaxTokens,
			SystemPrompt: system,
		})
		if err != nil {
			return nil, err
		}

		switch resp.StopReason {
		case llm.StopToolUse:
			if resp.Content != "" || len(resp.ToolCalls) > 0 {
				msgs = append(msgs, llm.Message{
					Role:      llm.RoleAssistant,
					Content:   resp.Content,
					ToolCalls: resp.ToolCalls,
				})
			}

			results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
			for _, call := range resp.ToolCalls {
				results = append(results, o.executeToolCall(ctx, call, req.ClientIP))
			}
			if len(results) > 0 {
				msgs = append(msgs, llm.Message{Role: llm.RoleUser, ToolResults: results})
			}

		case llm.StopEnd:
			o.activity.Append(activity.RoleAssistant, resp.Content)
			o.recordIterations(ctx, iterations)
			return &Result{Response: resp.Content, Iterations: iterations}, nil

		default:
			// Unexpected stop reason: surface whatever text the model
			// produced, or name the reason.
			text := resp.Content
			if text == "" {
				text = fmt.Sprintf("Stopped with reason: %s", resp.RawStopReason)
			}
			o.activity.Append(activity.RoleAssistant, text)
			o.recordIterations(ctx, iterations)
			return &Result{Response: text, Iterations: iterations}, nil
		}
	}

	o.activity.Append(activity.RoleAssistant, ExhaustedMessage)
	o.recordIterations(ctx, iterations)
	return &Result{Response: ExhaustedMessage, Iterations: iterations}, nil
}

// complete submits one model call, retrying exactly once after
// [config.OrchestratorConfig.ThrottleBackoff] when the backend is throttled.
func (o *Orchestrator) complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := o.now()
	resp, err := o.provider.Complete(ctx, req)

	if err != nil && errors.Is(err, llm.ErrThrottled) {
		observe.Logger(ctx).Warn("model call throttled, retrying once",
			"backoff", o.cfg.ThrottleBackoff,
		)
		if serr := o.sleep(ctx, o.cfg.ThrottleBackoff); serr != nil {
			return nil, serr
		}
		resp, err = o.provider.Complete(ctx, req)
	}

	if o.metrics != nil {
		o.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.RecordProviderRequest(ctx, "llm", status)
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: model call failed: %w", err)
	}
	return resp, nil
}

// executeToolCall routes one tool call through the policy table: resource
// reads are handled in-process, cacheable tools consult the cache first, and
// everything else goes straight to the MCP host. Failures are reported
// in-band via [llm.ToolResult.IsError] so the model can react to them.
func (o *Orchestrator) executeToolCall(ctx context.Context, call llm.ToolCall, clientIP string) llm.ToolResult {
	args := call.Arguments
	if args == "" {
		args = "{}"
	}

	if call.Name == readResourceToolName {
		return o.readResource(ctx, call, args)
	}

	policy, hasPolicy := o.policies[call.Name]

	if hasPolicy && policy.NeedsClientIP && clientIP != "" {
		args = injectClientIP(args, clientIP)
	}

	if hasPolicy && policy.Category != "" {
		if key, err := policy.Key(args); err == nil {
			return o.executeCached(ctx, call, args, key, policy)
		}
		// Unusable cache key: fall through to a direct invocation.
	}

	content, isError, err := o.invoke(ctx, call.Name, args)
	if err != nil {
		return llm.ToolResult{ID: call.ID, Content: "Error: " + err.Error(), IsError: true}
	}
	return llm.ToolResult{ID: call.ID, Content: content, IsError: isError}
}

// toolOutcome carries a tool invocation result through singleflight.
type toolOutcome struct {
	content string
	isError bool
}

// executeCached serves the call from the cache when fresh, otherwise invokes
// the tool (deduplicating concurrent fetches for the same key) and stores a
// successful result before returning it.
func (o *Orchestrator) executeCached(ctx context.Context, call llm.ToolCall, args, key string, policy ToolPolicy) llm.ToolResult {
	if payload, ok := o.cache.Get(key, policy.MaxAge); ok {
		o.activity.Append(activity.RoleSystem,
			fmt.Sprintf("cache hit for %s (%s)", key, call.Name))
		if o.metrics != nil {
			o.metrics.RecordCacheLookup(ctx, policy.Category, "hit")
		}
		return llm.ToolResult{ID: call.ID, Content: payload}
	}

	if o.metrics != nil {
		o.metrics.RecordCacheLookup(ctx, policy.Category, "miss")
	}

	v, err, _ := o.group.Do(key, func() (any, error) {
		content, isError, err := o.invoke(ctx, call.Name, args)
		if err != nil {
			return nil, err
		}
		if !isError {
			o.cache.Put(key, content, policy.Category)
		}
		return toolOutcome{content: content, isError: isError}, nil
	})

	o.activity.Append(activity.RoleSystem,
		fmt.Sprintf("cache miss for %s (%s); invoked tool", key, call.Name))

	if err != nil {
		return llm.ToolResult{ID: call.ID, Content: "Error: " + err.Error(), IsError: true}
	}
	out := v.(toolOutcome)
	return llm.ToolResult{ID: call.ID, Content: out.content, IsError: out.isError}
}

// invoke executes one tool through the MCP host and records metrics.
func (o *Orchestrator) invoke(ctx context.Context, name, args string) (content string, isError bool, err error) {
	start := o.now()
	result, err := o.host.ExecuteTool(ctx, name, args)

	if o.metrics != nil {
		o.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}
		o.metrics.RecordToolCall(ctx, name, status)
	}

	if err != nil {
		return "", false, err
	}
	if result.Content == "" {
		return "No result", result.IsError, nil
	}
	return result.Content, result.IsError, nil
}

// readResource handles the read_resource pseudo-tool.
func (o *Orchestrator) readResource(ctx context.Context, call llm.ToolCall, args string) llm.ToolResult {
	uri := gjson.Get(args, "uri").String()
	if uri == "" {
		return llm.ToolResult{ID: call.ID, Content: "Error: read_resource requires a uri argument", IsError: true}
	}

	result, err := o.host.ReadResource(ctx, uri)
	if err != nil {
		return llm.ToolResult{ID: call.ID, Content: "Error: " + err.Error(), IsError: true}
	}
	if result.Content == "" && !result.IsError {
		return llm.ToolResult{ID: call.ID, Content: "No content"}
	}
	return llm.ToolResult{ID: call.ID, Content: result.Content, IsError: result.IsError}
}

// injectClientIP sets the "ip_address" argument to ip unless the model
// already supplied a non-empty one. Unparseable args are returned unchanged;
// the tool will surface its own validation error.
func injectClientIP(args, ip string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(args), &m); err != nil {
		return args
	}
	if m == nil {
		m = map[string]any{}
	}
	if existing, ok := m["ip_address"].(string); ok && existing != "" {
		return args
	}
	m["ip_address"] = ip
	out, err := json.Marshal(m)
	if err != nil {
		return args
	}
	return string(out)
}

// readResourceDefinition returns the schema for the read_resource
// pseudo-tool offered alongside the MCP host's catalogue.
func readResourceDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        readResourceToolName,
		Description: "Read an MCP resource by its URI. Use this to access covered weather regions, usage notes, and other resources.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"uri": map[string]any{
					"type":        "string",
					"description": "The URI of the resource to read (e.g., 'weather://regions', 'time://usage')",
				},
			},
			"required": []string{"uri"},
		},
	}
}

// systemPrompt builds the per-turn system context: the configured prompt,
// the current local time, weather guidance, and the resource catalogue.
func (o *Orchestrator) systemPrompt() string {
	now := o.now()

	var b strings.Builder
	if o.cfg.SystemPrompt != "" {
		b.WriteString(o.cfg.SystemPrompt)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Current local time: %s (ISO: %s). Use this timestamp for any time-sensitive answers.",
		now.Format("Monday, January 02, 2006 15:04:05 MST"),
		now.Format(time.RFC3339),
	)

	b.WriteString("\n\nFor weather requests:" +
		"\n1. First call get_current_time to attempt location detection from IP" +
		"\n2. If coordinates are provided in the response, use them for get_forecast" +
		"\n3. If no coordinates are returned, politely ask the user for their location (city/state or lat/lon)" +
		"\n4. Never make up coordinates or assume a location")

	b.WriteString("\n\nAvailable MCP Resources (use read_resource tool to access):")
	resources := o.host.Resources()
	if len(resources) == 0 {
		b.WriteString("\n  (none available)")
	}
	for _, res := range resources {
		desc := res.Description
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(&b, "\n  - %s: %s", res.URI, desc)
	}

	return b.String()
}

// recordIterations records how many round trips the finished turn consumed.
func (o *Orchestrator) recordIterations(ctx context.Context, n int) {
	if o.metrics != nil {
		o.metrics.LoopIterations.Record(ctx, int64(n))
	}
}

// sleepCtx pauses for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
