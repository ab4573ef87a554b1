// Package score turns judgment matrices into calibrated per-response and
// per-model quality scores.
package score

import (
	"errors"
	"sort"

	"github.com/stellarlinkco/checkrank/internal/store"
)

// Features converts a verdict vector into a feature vector. Pass maps to 1;
// fail maps to 0; an errored cell is imputed to 0, the same as fail, so an
// unjudgeable criterion never inflates a score. The stored artifact keeps
// the tagged error, so this policy is confined to scoring.
func Features(verdicts []store.Verdict) []float64 {
	out := make([]float64, len(verdicts))
	for i, v := range verdicts {
		if v == store.VerdictPass {
			out[i] = 1
		}
	}
	return out
}

// BuildTrainingRows joins train-split judgment rows with their labeler rows
// into calibration training examples. The binary label is 1 when the
// labeler's pass fraction meets threshold. Pairs without a labeler row are
// dropped; they cannot contribute ground truth.
func BuildTrainingRows(judgments, labels []store.JudgmentRow, threshold float64) []TrainRow {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}

	type key struct{ model, promptID string }
	labelByKey := make(map[key][]store.Verdict, len(labels))
	for _, row := range labels {
		labelByKey[key{row.Model, row.PromptID}] = row.Verdicts
	}

	var out []TrainRow
	for _, row := range judgments {
		labelVerdicts, ok := labelByKey[key{row.Model, row.PromptID}]
		if !ok {
			continue
		}
		label := 0.0
		if passFraction(Features(labelVerdicts)) >= threshold {
			label = 1.0
		}
		out = append(out, TrainRow{
			PromptID: row.PromptID,
			Features: Features(row.Verdicts),
			Label:    label,
		})
	}
	return out
}

// Apply scores every judgment row with a fitted calibrator.
func Apply(cal Calibrator, rows []store.JudgmentRow) ([]store.ScoreRow, error) {
	if cal == nil {
		return nil, errors.New("score: nil calibrator")
	}
	if len(rows) == 0 {
		return nil, errors.New("score: no judgment rows")
	}

	out := make([]store.ScoreRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, store.ScoreRow{
			Model:    row.Model,
			PromptID: row.PromptID,
			Score:    cal.Predict(row.PromptID, Features(row.Verdicts)),
		})
	}
	return out, nil
}

// ModelScore is a per-model aggregate over the prompts the model actually
// has scores for.
type ModelScore struct {
	Model   string
	Score   float64
	Prompts int
}

// Aggregate averages per-response scores per model, unweighted, over the
// model's available prompts only. A model absent from rows gets no entry:
// "no score" stays explicit instead of becoming a silent zero.
func Aggregate(rows []store.ScoreRow) []ModelScore {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, row := range rows {
		sums[row.Model] += row.Score
		counts[row.Model]++
	}

	out := make([]ModelScore, 0, len(sums))
	for model, sum := range sums {
		out = append(out, ModelScore{
			Model:   model,
			Score:   sum / float64(counts[model]),
			Prompts: counts[model],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}
