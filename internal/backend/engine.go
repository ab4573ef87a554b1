package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellarlinkco/checkrank/internal/llm"
)

// ProviderEngine adapts an llm.Provider into a local inference Engine,
// typically pointed at an OpenAI-compatible server bound to one device.
// Any item failure is returned as the engine error: a local worker cannot
// resume mid-batch, so partial results are never reported.
type ProviderEngine struct {
	Provider llm.Provider
	Model    string
}

func (e *ProviderEngine) Infer(ctx context.Context, batch []Request) ([]string, error) {
	if e == nil || e.Provider == nil {
		return nil, errors.New("backend: nil engine provider")
	}

	out := make([]string, len(batch))
	for i, req := range batch {
		resp, err := e.Provider.Complete(ctx, &llm.Request{
			System:      req.System,
			User:        req.User,
			Model:       e.Model,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("backend: engine item %d: %w", i, err)
		}
		if resp == nil {
			return nil, fmt.Errorf("backend: engine item %d: nil response", i)
		}
		out[i] = resp.Text
	}
	return out, nil
}
