// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the orchestrator sends correct
// CompletionRequests and to feed controlled responses without a live model
// backend. Responses are scripted: each call to Complete consumes the next
// [Turn] in order, and the final turn repeats once the script runs out.
//
// Example:
//
//	p := &mock.Provider{Turns: []mock.Turn{
//	    {Response: &llm.CompletionResponse{StopReason: llm.StopEnd, Content: "Hello!"}},
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/stratus-ai/stratus/pkg/provider/llm"
)

// Turn scripts the outcome of one Complete call. Exactly one of Response
// and Err should be set.
type Turn struct {
	// Response is returned when Err is nil.
	Response *llm.CompletionResponse

	// Err is returned instead of a response. Use llm.ErrThrottled (wrapped
	// or bare) to exercise the caller's retry policy.
	Err error
}

// Provider is a scripted implementation of llm.Provider.
// The zero value returns an empty StopEnd response from every call.
type Provider struct {
	mu sync.Mutex

	// Turns is the scripted sequence of outcomes, consumed in order.
	Turns []Turn

	// Caps is returned from Capabilities. Zero value means a tool-calling
	// model with generous limits.
	Caps llm.ModelCapabilities

	// Requests records every CompletionRequest passed to Complete, in call
	// order.
	Requests []llm.CompletionRequest

	next int
}

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider by consuming the next scripted Turn.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests = append(p.Requests, req)

	if len(p.Turns) == 0 {
		return &llm.CompletionResponse{StopReason: llm.StopEnd}, nil
	}

	turn := p.Turns[min(p.next, len(p.Turns)-1)]
	p.next++

	if turn.Err != nil {
		return nil, turn.Err
	}
	return turn.Response, nil
}

// CompleteCalls returns how many times Complete has been invoked.
func (p *Provider) CompleteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// CountTokens implements llm.Provider with a fixed-rate estimate.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
	}
	return total, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	if p.Caps == (llm.ModelCapabilities{}) {
		return llm.ModelCapabilities{
			ContextWindow:       128_000,
			MaxOutputTokens:     4_096,
			SupportsToolCalling: true,
		}
	}
	return p.Caps
}
