package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stellarlinkco/checkrank/internal/llm"
)

const (
	defaultParallelism = 4
	defaultRetryBase   = time.Second
	maxItemRetries     = 5
)

// Remote issues one provider call per request with a bounded number of
// in-flight calls. Each item retries transient failures independently with
// exponential backoff; an item that exhausts its retries yields an error
// Result without aborting the batch.
type Remote struct {
	provider    llm.Provider
	model       string
	parallelism int
	maxRetries  int
	retryBase   time.Duration
	timeout     time.Duration
}

type RemoteOption func(*Remote)

func WithParallelism(n int) RemoteOption {
	return func(r *Remote) {
		if r != nil && n > 0 {
			r.parallelism = n
		}
	}
}

func WithMaxRetries(n int) RemoteOption {
	return func(r *Remote) {
		if r == nil {
			return
		}
		if n < 0 {
			n = 0
		}
		if n > maxItemRetries {
			n = maxItemRetries
		}
		r.maxRetries = n
	}
}

func WithRetryBase(d time.Duration) RemoteOption {
	return func(r *Remote) {
		if r != nil && d > 0 {
			r.retryBase = d
		}
	}
}

func WithRequestTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) {
		if r != nil && d > 0 {
			r.timeout = d
		}
	}
}

func NewRemote(provider llm.Provider, model string, opts ...RemoteOption) *Remote {
	r := &Remote{
		provider:    provider,
		model:       model,
		parallelism: defaultParallelism,
		maxRetries:  2,
		retryBase:   defaultRetryBase,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Remote) Name() string {
	return "remote"
}

func (r *Remote) Generate(ctx context.Context, batch []Request) ([]Result, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("backend: remote: nil provider")
	}
	if ctx == nil {
		return nil, errors.New("backend: remote: nil context")
	}
	if len(batch) == 0 {
		return nil, nil
	}

	out := make([]Result, len(batch))
	sem := make(chan struct{}, r.parallelism)

	var wg sync.WaitGroup
	for i := range batch {
		select {
		case <-ctx.Done():
			// Remaining items inherit the cancellation error; completed
			// slots keep their results so the caller sees a full batch.
			for j := i; j < len(batch); j++ {
				out[j] = Result{Err: ctx.Err()}
			}
			wg.Wait()
			return out, nil
		case sem <- struct{}{}:
		}

		idx := i
		req := batch[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out[idx] = r.generateOne(ctx, req)
		}()
	}
	wg.Wait()

	return out, nil
}

func (r *Remote) generateOne(ctx context.Context, req Request) Result {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Err: err}
		}
		if attempt > 0 {
			if err := sleepWithContext(ctx, retryBackoff(r.retryBase, attempt-1)); err != nil {
				return Result{Err: err}
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if r.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		}

		resp, err := r.provider.Complete(callCtx, &llm.Request{
			System:      req.System,
			User:        req.User,
			Model:       r.model,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		if cancel != nil {
			cancel()
		}

		if err != nil {
			lastErr = err
			continue
		}
		if resp == nil {
			lastErr = errors.New("backend: remote: nil response")
			continue
		}
		return Result{Text: resp.Text}
	}
	return Result{Err: fmt.Errorf("backend: remote: %d attempts failed: %w", r.maxRetries+1, lastErr)}
}

func retryBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 0 {
		return 0
	}
	return base * time.Duration(1<<attempt)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
