// Package backend provides a uniform batch-generation interface over two
// execution strategies: a concurrency-bounded remote API backend and a
// local per-device worker backend.
package backend

import "context"

type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Result holds the completion for one request. Exactly one of Text and Err
// is meaningful; a per-item failure is an Err on that result, never a
// missing or reordered entry.
type Result struct {
	Text string
	Err  error
}

// Backend converts a batch of requests into a batch of results, preserving
// order and length (one result per input). A non-nil error means the whole
// batch failed structurally and no per-item results are usable.
type Backend interface {
	Name() string
	Generate(ctx context.Context, batch []Request) ([]Result, error)
}
