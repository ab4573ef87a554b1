// Package task sequences the four pipeline stages over one resumable task.
package task

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const idLen = 12

// Task is one resumable end-to-end evaluation run. It is a plain value
// passed into every stage call; nothing about a run lives in package state.
type Task struct {
	ID             string
	Dataset        string
	GeneratorModel string
	JudgeModel     string
	LabelerModel   string
	Strategy       string
	LabelThreshold float64

	// GenerateChecklists controls the optional first stage. When false, a
	// previously stored checklist set for (dataset, generator) must exist.
	GenerateChecklists bool
}

// NewID derives a deterministic task id from the dataset, judge model, and
// a per-run discriminator (typically a timestamp, or anything stable the
// caller wants to resume under).
func NewID(dataset, judge, discriminator string) string {
	sum := sha256.Sum256([]byte(dataset + "|" + judge + "|" + discriminator))
	return hex.EncodeToString(sum[:])[:idLen]
}

// Validate checks the fields every stage depends on.
func (t *Task) Validate() error {
	if t == nil {
		return fmt.Errorf("task: nil task")
	}
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task: empty id")
	}
	if strings.TrimSpace(t.Dataset) == "" {
		return fmt.Errorf("task: empty dataset")
	}
	if strings.TrimSpace(t.GeneratorModel) == "" {
		return fmt.Errorf("task: empty generator model")
	}
	if strings.TrimSpace(t.JudgeModel) == "" {
		return fmt.Errorf("task: empty judge model")
	}
	if strings.TrimSpace(t.LabelerModel) == "" {
		return fmt.Errorf("task: empty labeler model")
	}
	return nil
}
