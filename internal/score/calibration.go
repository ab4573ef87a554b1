package score

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	StrategyPooled    = "pooled"
	StrategyPerPrompt = "per_prompt"

	fitIterations = 500
	fitLearnRate  = 0.5
	fitL2         = 0.01
)

// TrainRow is one labeled training example: the judgment feature vector for
// a (prompt, model) pair and its binary quality label from the labeler.
type TrainRow struct {
	PromptID string
	Features []float64
	Label    float64
}

// Calibrator maps a judgment feature vector to a quality score in [0,1].
// Fit consumes train-split rows only; the fitted model is frozen and applied
// identically to both splits.
type Calibrator interface {
	Strategy() string
	Fit(rows []TrainRow) error
	Predict(promptID string, features []float64) float64
	Params() ([]byte, error)
}

// New returns an unfitted calibrator for the named strategy.
func New(strategy string) (Calibrator, error) {
	switch strings.TrimSpace(strategy) {
	case "", StrategyPooled:
		return &pooledCalibrator{}, nil
	case StrategyPerPrompt:
		return &perPromptCalibrator{}, nil
	default:
		return nil, fmt.Errorf("score: unknown calibration strategy %q", strategy)
	}
}

// Load restores a fitted calibrator from persisted params.
func Load(strategy string, params []byte) (Calibrator, error) {
	cal, err := New(strategy)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(params, cal); err != nil {
		return nil, fmt.Errorf("score: load calibration params: %w", err)
	}
	return cal, nil
}

// logistic is a logistic-regression unit fit by gradient descent with a
// small L2 penalty to keep weights bounded on separable data.
type logistic struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func (l *logistic) fit(xs [][]float64, ys []float64) error {
	if len(xs) == 0 || len(xs) != len(ys) {
		return errors.New("score: empty or mismatched training data")
	}
	dim := len(xs[0])
	for _, x := range xs {
		if len(x) != dim {
			return errors.New("score: inconsistent feature dimensions")
		}
	}

	l.Weights = make([]float64, dim)
	l.Bias = 0

	n := float64(len(xs))
	for iter := 0; iter < fitIterations; iter++ {
		gradW := make([]float64, dim)
		gradB := 0.0
		for i, x := range xs {
			err := l.predict(x) - ys[i]
			for d := 0; d < dim; d++ {
				gradW[d] += err * x[d]
			}
			gradB += err
		}
		for d := 0; d < dim; d++ {
			l.Weights[d] = l.Weights[d] - fitLearnRate*(gradW[d]/n+fitL2*l.Weights[d])
		}
		l.Bias -= fitLearnRate * gradB / n
	}
	return nil
}

func (l *logistic) predict(x []float64) float64 {
	z := l.Bias
	for d := 0; d < len(l.Weights) && d < len(x); d++ {
		z += l.Weights[d] * x[d]
	}
	return 1 / (1 + math.Exp(-z))
}

// pooledCalibrator fits one logistic model over all train rows, reducing
// each variable-length verdict vector to its pass fraction so unrelated
// prompts share a single comparable feature space.
type pooledCalibrator struct {
	Model  logistic `json:"model"`
	Fitted bool     `json:"fit"`
}

func (c *pooledCalibrator) Strategy() string { return StrategyPooled }

func (c *pooledCalibrator) Fit(rows []TrainRow) error {
	if c == nil {
		return errors.New("score: nil calibrator")
	}
	if len(rows) == 0 {
		return errors.New("score: no labeled training rows")
	}

	xs := make([][]float64, len(rows))
	ys := make([]float64, len(rows))
	for i, row := range rows {
		xs[i] = []float64{passFraction(row.Features)}
		ys[i] = row.Label
	}
	if err := c.Model.fit(xs, ys); err != nil {
		return err
	}
	c.Fitted = true
	return nil
}

func (c *pooledCalibrator) Predict(promptID string, features []float64) float64 {
	if c == nil || !c.Fitted {
		return 0
	}
	return c.Model.predict([]float64{passFraction(features)})
}

func (c *pooledCalibrator) Params() ([]byte, error) {
	if c == nil || !c.Fitted {
		return nil, errors.New("score: calibrator not fit")
	}
	return json.Marshal(c)
}

// perPromptCalibrator fits one logistic model per prompt over the full
// verdict vector, with a pooled fallback for prompts that had no labeled
// train rows (or whose checklist length changed).
type perPromptCalibrator struct {
	Prompts  map[string]*logistic `json:"prompts"`
	Fallback logistic             `json:"fallback"`
	Fitted   bool                 `json:"fit"`
}

func (c *perPromptCalibrator) Strategy() string { return StrategyPerPrompt }

func (c *perPromptCalibrator) Fit(rows []TrainRow) error {
	if c == nil {
		return errors.New("score: nil calibrator")
	}
	if len(rows) == 0 {
		return errors.New("score: no labeled training rows")
	}

	byPrompt := make(map[string][]TrainRow)
	xs := make([][]float64, len(rows))
	ys := make([]float64, len(rows))
	for i, row := range rows {
		byPrompt[row.PromptID] = append(byPrompt[row.PromptID], row)
		xs[i] = []float64{passFraction(row.Features)}
		ys[i] = row.Label
	}

	if err := c.Fallback.fit(xs, ys); err != nil {
		return err
	}

	c.Prompts = make(map[string]*logistic, len(byPrompt))
	for promptID, promptRows := range byPrompt {
		pxs := make([][]float64, len(promptRows))
		pys := make([]float64, len(promptRows))
		for i, row := range promptRows {
			pxs[i] = row.Features
			pys[i] = row.Label
		}
		model := &logistic{}
		if err := model.fit(pxs, pys); err != nil {
			// Mixed checklist lengths for this prompt; the fallback covers it.
			continue
		}
		c.Prompts[promptID] = model
	}

	c.Fitted = true
	return nil
}

func (c *perPromptCalibrator) Predict(promptID string, features []float64) float64 {
	if c == nil || !c.Fitted {
		return 0
	}
	if model, ok := c.Prompts[promptID]; ok && len(model.Weights) == len(features) {
		return model.predict(features)
	}
	return c.Fallback.predict([]float64{passFraction(features)})
}

func (c *perPromptCalibrator) Params() ([]byte, error) {
	if c == nil || !c.Fitted {
		return nil, errors.New("score: calibrator not fit")
	}
	return json.Marshal(c)
}

func passFraction(features []float64) float64 {
	if len(features) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range features {
		sum += f
	}
	return sum / float64(len(features))
}
