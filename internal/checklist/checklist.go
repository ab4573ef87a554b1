// Package checklist generates per-prompt grading checklists: ordered lists
// of atomic, independently verifiable criteria. A checklist is generated
// once per prompt and shared across every target model graded against it.
package checklist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/checkrank/internal/backend"
	"github.com/stellarlinkco/checkrank/internal/dataset"
	"github.com/stellarlinkco/checkrank/internal/llm"
)

const generateSystem = `You are an evaluation expert. Given a prompt that will be sent to a language model, produce a checklist of atomic, independently verifiable criteria that a high-quality response must satisfy.

Rules:
- Each criterion must be checkable in isolation with a yes/no answer.
- Do not bundle multiple requirements into one criterion.
- Order criteria from most to least important.

Return ONLY a JSON array of criterion strings, no markdown code blocks or extra text.`

const generateUser = `Produce the checklist for the following prompt.

<prompt>
%s
</prompt>`

// Result maps prompt id to its ordered checklist. Failed lists the prompt
// ids whose generation exhausted retries without yielding a single item.
type Result struct {
	Items  map[string][]string
	Failed []string
}

// Generator runs the checklist stage against a backend.
type Generator struct {
	Backend backend.Backend
	Retries int
}

// Generate produces one checklist per prompt. Prompts fail independently:
// a prompt whose output never parses into at least one item is recorded in
// Failed, and the rest of the batch is unaffected.
func (g *Generator) Generate(ctx context.Context, prompts []dataset.Prompt) (*Result, error) {
	if g == nil || g.Backend == nil {
		return nil, errors.New("checklist: nil backend")
	}
	if ctx == nil {
		return nil, errors.New("checklist: nil context")
	}
	if len(prompts) == 0 {
		return nil, errors.New("checklist: no prompts")
	}

	retries := g.Retries
	if retries < 0 {
		retries = 0
	}

	out := &Result{Items: make(map[string][]string, len(prompts))}
	pending := prompts

	for attempt := 0; attempt <= retries && len(pending) > 0; attempt++ {
		batch := make([]backend.Request, len(pending))
		for i, p := range pending {
			batch[i] = backend.Request{
				System:      generateSystem,
				User:        fmt.Sprintf(generateUser, p.Text),
				MaxTokens:   2048,
				Temperature: 0,
			}
		}

		results, err := g.Backend.Generate(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("checklist: generate batch: %w", err)
		}
		if len(results) != len(batch) {
			return nil, fmt.Errorf("checklist: got %d results want %d", len(results), len(batch))
		}

		var failed []dataset.Prompt
		for i, res := range results {
			p := pending[i]
			if res.Err != nil {
				failed = append(failed, p)
				continue
			}
			items, err := parseItems(res.Text)
			if err != nil {
				failed = append(failed, p)
				continue
			}
			out.Items[p.ID] = items
		}
		pending = failed
	}

	for _, p := range pending {
		out.Failed = append(out.Failed, p.ID)
	}
	return out, nil
}

func parseItems(raw string) ([]string, error) {
	var items []string
	if err := llm.ExtractJSONArray(raw, &items); err != nil {
		return nil, fmt.Errorf("checklist: parse items: %w", err)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("checklist: no items in output")
	}
	return out, nil
}
