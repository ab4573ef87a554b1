package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stellarlinkco/checkrank/internal/llm"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int

	// failFor maps user content to the number of times it should fail
	// before succeeding. -1 fails forever.
	failFor map[string]int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if remaining, ok := p.failFor[req.User]; ok {
		if remaining == -1 {
			return nil, errors.New("permanent failure")
		}
		if remaining > 0 {
			p.failFor[req.User] = remaining - 1
			return nil, errors.New("transient failure")
		}
	}
	return &llm.Response{Text: "echo:" + req.User}, nil
}

func TestRemote_PreservesOrderAndLength(t *testing.T) {
	provider := &fakeProvider{}
	r := NewRemote(provider, "m", WithParallelism(3), WithRetryBase(time.Millisecond))

	batch := make([]Request, 10)
	for i := range batch {
		batch[i] = Request{User: fmt.Sprintf("req-%d", i)}
	}

	results, err := r.Generate(context.Background(), batch)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(results) != len(batch) {
		t.Fatalf("len(results): got %d want %d", len(results), len(batch))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Fatalf("result %d: unexpected error: %v", i, res.Err)
		}
		want := fmt.Sprintf("echo:req-%d", i)
		if res.Text != want {
			t.Fatalf("result %d: got %q want %q", i, res.Text, want)
		}
	}
}

func TestRemote_RetriesTransientFailure(t *testing.T) {
	provider := &fakeProvider{failFor: map[string]int{"flaky": 2}}
	r := NewRemote(provider, "m", WithMaxRetries(2), WithRetryBase(time.Millisecond))

	results, err := r.Generate(context.Background(), []Request{{User: "flaky"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("expected retry to succeed, got %v", results[0].Err)
	}
	if results[0].Text != "echo:flaky" {
		t.Fatalf("text: got %q", results[0].Text)
	}
}

func TestRemote_ExhaustedRetriesYieldItemError(t *testing.T) {
	provider := &fakeProvider{failFor: map[string]int{"broken": -1}}
	r := NewRemote(provider, "m", WithMaxRetries(1), WithRetryBase(time.Millisecond))

	results, err := r.Generate(context.Background(), []Request{
		{User: "ok"},
		{User: "broken"},
		{User: "also-ok"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("healthy items must not fail: %v, %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Fatal("expected item error for broken request")
	}
	if !strings.Contains(results[1].Err.Error(), "attempts failed") {
		t.Fatalf("item error: got %v", results[1].Err)
	}
}

func TestRemote_CancelledContext(t *testing.T) {
	provider := &fakeProvider{}
	r := NewRemote(provider, "m", WithParallelism(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := r.Generate(ctx, []Request{{User: "a"}, {User: "b"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i, res := range results {
		if res.Err == nil {
			t.Fatalf("result %d: expected cancellation error", i)
		}
	}
}

func TestRemote_NilProvider(t *testing.T) {
	r := NewRemote(nil, "m")
	if _, err := r.Generate(context.Background(), []Request{{User: "a"}}); err == nil {
		t.Fatal("expected error for nil provider")
	}
}
