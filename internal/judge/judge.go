// Package judge grades target model responses against checklists, producing
// one tagged verdict per checklist item. An unparseable reply degrades to an
// all-error vector for that pair only; error is never conflated with fail.
package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/checkrank/internal/backend"
	"github.com/stellarlinkco/checkrank/internal/dataset"
	"github.com/stellarlinkco/checkrank/internal/llm"
	"github.com/stellarlinkco/checkrank/internal/store"
)

const judgeSystem = `You are a strict grader. You receive a checklist of criteria and a model response. For each criterion, in order, decide whether the response satisfies it.

Return ONLY a JSON array of booleans, one per criterion, in the same order as the checklist. No markdown code blocks or extra text.`

const judgeUser = `## Checklist
%s

## Response to grade
<response>
%s
</response>

Return the JSON array of %d booleans.`

// pair is one pending (prompt, model) grading unit.
type pair struct {
	model    string
	promptID string
	items    int
}

// Judger runs the judgment stage against a backend.
type Judger struct {
	Backend backend.Backend
	Retries int
}

// Judge grades every (prompt, model) pair that has both a checklist and a
// recorded response. responses maps model -> prompt id -> response text.
// Pairs fail independently; a pair that exhausts parse retries yields an
// all-error verdict vector rather than failing the stage.
func (j *Judger) Judge(
	ctx context.Context,
	prompts []dataset.Prompt,
	checklists map[string][]string,
	models []string,
	responses map[string]map[string]string,
) ([]store.JudgmentRow, error) {
	if j == nil || j.Backend == nil {
		return nil, errors.New("judge: nil backend")
	}
	if ctx == nil {
		return nil, errors.New("judge: nil context")
	}
	if len(checklists) == 0 {
		return nil, errors.New("judge: empty checklist set")
	}
	if len(models) == 0 {
		return nil, errors.New("judge: no models")
	}

	retries := j.Retries
	if retries < 0 {
		retries = 0
	}

	var pending []pair
	for _, model := range models {
		modelResponses := responses[model]
		for _, p := range prompts {
			items, ok := checklists[p.ID]
			if !ok || len(items) == 0 {
				continue
			}
			if _, ok := modelResponses[p.ID]; !ok {
				// No recorded response: the pair gets no row at all, so it
				// cannot masquerade as a graded failure downstream.
				continue
			}
			pending = append(pending, pair{model: model, promptID: p.ID, items: len(items)})
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	verdicts := make(map[pair][]store.Verdict, len(pending))

	for attempt := 0; attempt <= retries && len(pending) > 0; attempt++ {
		batch := make([]backend.Request, len(pending))
		for i, pr := range pending {
			batch[i] = backend.Request{
				System:      judgeSystem,
				User:        buildJudgeUser(checklists[pr.promptID], responses[pr.model][pr.promptID]),
				MaxTokens:   1024,
				Temperature: 0,
			}
		}

		results, err := j.Backend.Generate(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("judge: generate batch: %w", err)
		}
		if len(results) != len(batch) {
			return nil, fmt.Errorf("judge: got %d results want %d", len(results), len(batch))
		}

		var failed []pair
		for i, res := range results {
			pr := pending[i]
			if res.Err != nil {
				failed = append(failed, pr)
				continue
			}
			vec, err := parseVerdicts(res.Text, pr.items)
			if err != nil {
				failed = append(failed, pr)
				continue
			}
			verdicts[pr] = vec
		}
		pending = failed
	}

	for _, pr := range pending {
		vec := make([]store.Verdict, pr.items)
		for i := range vec {
			vec[i] = store.VerdictErrored
		}
		verdicts[pr] = vec
	}

	// Emit rows in the caller's model order, prompts in dataset order, so
	// output is deterministic regardless of completion order.
	var out []store.JudgmentRow
	for _, model := range models {
		for _, p := range prompts {
			pr := pair{model: model, promptID: p.ID, items: len(checklists[p.ID])}
			vec, ok := verdicts[pr]
			if !ok {
				continue
			}
			out = append(out, store.JudgmentRow{Model: model, PromptID: p.ID, Verdicts: vec})
		}
	}
	return out, nil
}

func buildJudgeUser(items []string, response string) string {
	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
	}
	return fmt.Sprintf(judgeUser, strings.TrimRight(sb.String(), "\n"), response, len(items))
}

// parseVerdicts parses a judge reply into exactly want verdicts. A length
// mismatch is a parse error so a truncated reply never silently drops
// criteria.
func parseVerdicts(raw string, want int) ([]store.Verdict, error) {
	var bools []bool
	if err := llm.ExtractJSONArray(raw, &bools); err != nil {
		return nil, fmt.Errorf("judge: parse verdicts: %w", err)
	}
	if len(bools) != want {
		return nil, fmt.Errorf("judge: got %d verdicts want %d", len(bools), want)
	}

	out := make([]store.Verdict, want)
	for i, b := range bools {
		if b {
			out[i] = store.VerdictPass
		} else {
			out[i] = store.VerdictFail
		}
	}
	return out, nil
}
