// Package ranking orders models by aggregate score and derives pairwise
// outcomes for external leaderboard formats.
package ranking

import (
	"errors"
	"sort"

	"github.com/stellarlinkco/checkrank/internal/score"
	"github.com/stellarlinkco/checkrank/internal/store"
)

// Result separates ranked models from those with no score at all; an
// unscored model is reported, never ranked as zero.
type Result struct {
	Rows     []store.RankingRow
	Unscored []string
}

// Rank orders models by descending aggregate score, ties broken by
// ascending model name so reruns are reproducible. models is the full list
// the caller wanted ranked; members without an aggregate land in Unscored.
func Rank(models []string, aggregates []score.ModelScore) (*Result, error) {
	if len(models) == 0 {
		return nil, errors.New("ranking: no models")
	}

	byModel := make(map[string]score.ModelScore, len(aggregates))
	for _, agg := range aggregates {
		byModel[agg.Model] = agg
	}

	out := &Result{}
	seen := make(map[string]struct{}, len(models))
	var ranked []score.ModelScore
	for _, model := range models {
		if _, dup := seen[model]; dup {
			continue
		}
		seen[model] = struct{}{}

		agg, ok := byModel[model]
		if !ok || agg.Prompts == 0 {
			out.Unscored = append(out.Unscored, model)
			continue
		}
		ranked = append(ranked, agg)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Model < ranked[j].Model
	})
	sort.Strings(out.Unscored)

	out.Rows = make([]store.RankingRow, len(ranked))
	for i, agg := range ranked {
		out.Rows[i] = store.RankingRow{Rank: i + 1, Model: agg.Model, Score: agg.Score}
	}
	return out, nil
}

// Outcome of one pairwise comparison on one shared prompt.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeTie  Outcome = "tie"
)

// PairwiseRecord is one row of the pairwise export: the outcome for ModelA
// against ModelB on one shared prompt.
type PairwiseRecord struct {
	ModelA   string
	ModelB   string
	PromptID string
	Outcome  Outcome
}

// Pairwise derives win/loss/tie records for every unordered model pair and
// every prompt both models were scored on. It is a pure function of the
// score table and introduces no new state.
func Pairwise(rows []store.ScoreRow) []PairwiseRecord {
	byModel := make(map[string]map[string]float64)
	for _, row := range rows {
		if byModel[row.Model] == nil {
			byModel[row.Model] = make(map[string]float64)
		}
		byModel[row.Model][row.PromptID] = row.Score
	}

	models := make([]string, 0, len(byModel))
	for model := range byModel {
		models = append(models, model)
	}
	sort.Strings(models)

	var out []PairwiseRecord
	for i := 0; i < len(models); i++ {
		for j := i + 1; j < len(models); j++ {
			a, b := models[i], models[j]

			prompts := make([]string, 0, len(byModel[a]))
			for promptID := range byModel[a] {
				if _, shared := byModel[b][promptID]; shared {
					prompts = append(prompts, promptID)
				}
			}
			sort.Strings(prompts)

			for _, promptID := range prompts {
				outcome := OutcomeTie
				switch {
				case byModel[a][promptID] > byModel[b][promptID]:
					outcome = OutcomeWin
				case byModel[a][promptID] < byModel[b][promptID]:
					outcome = OutcomeLoss
				}
				out = append(out, PairwiseRecord{
					ModelA:   a,
					ModelB:   b,
					PromptID: promptID,
					Outcome:  outcome,
				})
			}
		}
	}
	return out
}
