package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/stratus-ai/stratus/pkg/provider/llm"
	llmmock "github.com/stratus-ai/stratus/pkg/provider/llm/mock"
)

func TestLLMFallback_Complete_PrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{Turns: []llmmock.Turn{
		{Response: &llm.CompletionResponse{Content: "hello from primary", StopReason: llm.StopEnd}},
	}}
	secondary := &llmmock.Provider{Turns: []llmmock.Turn{
		{Response: &llm.CompletionResponse{Content: "hello from secondary", StopReason: llm.StopEnd}},
	}}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from primary" {
		t.Fatalf("content = %q, want 'hello from primary'", resp.Content)
	}
	if primary.CompleteCalls() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.CompleteCalls())
	}
	if secondary.CompleteCalls() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CompleteCalls())
	}
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	primary := &llmmock.Provider{Turns: []llmmock.Turn{
		{Err: errors.New("primary down")},
	}}
	secondary := &llmmock.Provider{Turns: []llmmock.Turn{
		{Response: &llm.CompletionResponse{Content: "hello from secondary", StopReason: llm.StopEnd}},
	}}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from secondary" {
		t.Fatalf("content = %q, want 'hello from secondary'", resp.Content)
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	primary := &llmmock.Provider{Turns: []llmmock.Turn{{Err: errors.New("primary down")}}}
	secondary := &llmmock.Provider{Turns: []llmmock.Turn{{Err: errors.New("secondary down")}}}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_Complete_ThrottlePreserved(t *testing.T) {
	// When every backend is throttled the caller's errors.Is check must
	// still see llm.ErrThrottled through the ErrAllFailed wrap.
	primary := &llmmock.Provider{Turns: []llmmock.Turn{{Err: llm.ErrThrottled}}}
	secondary := &llmmock.Provider{Turns: []llmmock.Turn{{Err: llm.ErrThrottled}}}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, llm.ErrThrottled) {
		t.Fatalf("err = %v, want llm.ErrThrottled preserved", err)
	}
}

func TestLLMFallback_CountTokens(t *testing.T) {
	primary := &llmmock.Provider{}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	count, err := fb.CountTokens([]llm.Message{{Role: llm.RoleUser, Content: "test message"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count == 0 {
		t.Fatal("count = 0, want a positive estimate")
	}
}

func TestLLMFallback_Capabilities(t *testing.T) {
	primary := &llmmock.Provider{
		Caps: llm.ModelCapabilities{
			ContextWindow:       128000,
			SupportsToolCalling: true,
		},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	caps := fb.Capabilities()
	if caps.ContextWindow != 128000 {
		t.Fatalf("ContextWindow = %d, want 128000", caps.ContextWindow)
	}
	if !caps.SupportsToolCalling {
		t.Fatal("SupportsToolCalling should be true")
	}
}
