package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound marks a missing artifact. Callers gate stage execution on it.
var ErrNotFound = errors.New("store: not found")

// Verdict is one judged checklist cell. Errored is a distinct value, never
// folded into Fail: the scoring imputation policy has to stay auditable.
type Verdict string

const (
	VerdictPass    Verdict = "pass"
	VerdictFail    Verdict = "fail"
	VerdictErrored Verdict = "error"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictPass, VerdictFail, VerdictErrored:
		return true
	default:
		return false
	}
}

// TaskRecord is the resumable unit of work.
type TaskRecord struct {
	ID        string
	Dataset   string
	Judge     string
	CreatedAt time.Time
}

// JudgmentRow holds the verdict vector for one (prompt, model) pair.
type JudgmentRow struct {
	Model    string
	PromptID string
	Verdicts []Verdict
}

// ScoreRow is a calibrated per-response score.
type ScoreRow struct {
	Model    string
	PromptID string
	Score    float64
}

// RankingRow is one leaderboard position.
type RankingRow struct {
	Rank  int
	Model string
	Score float64
}

// ChecklistWriter and ChecklistReader persist checklists keyed by
// (dataset, generator model); checklists are shared across tasks.
type ChecklistWriter interface {
	SaveChecklists(ctx context.Context, dataset, generator string, items map[string][]string) error
}

type ChecklistReader interface {
	GetChecklists(ctx context.Context, dataset, generator string) (map[string][]string, error)
}

// TaskArtifacts persists per-task stage outputs. Judgments append per
// model; the other artifacts are whole-stage atomic writes.
type TaskArtifacts interface {
	SaveTask(ctx context.Context, task *TaskRecord) error
	GetTask(ctx context.Context, id string) (*TaskRecord, error)

	SaveJudgments(ctx context.Context, taskID string, labeler bool, rows []JudgmentRow) error
	GetJudgments(ctx context.Context, taskID string, labeler bool) ([]JudgmentRow, error)
	JudgedModels(ctx context.Context, taskID string, labeler bool) ([]string, error)

	SaveCalibration(ctx context.Context, taskID, strategy string, params []byte) error
	GetCalibration(ctx context.Context, taskID string) (strategy string, params []byte, err error)

	SaveScores(ctx context.Context, taskID string, rows []ScoreRow) error
	GetScores(ctx context.Context, taskID string) ([]ScoreRow, error)

	SaveRanking(ctx context.Context, taskID string, rows []RankingRow) error
	GetRanking(ctx context.Context, taskID string) ([]RankingRow, error)
}

// Store is the full artifact store for the pipeline.
type Store interface {
	ChecklistWriter
	ChecklistReader
	TaskArtifacts
	Close() error
}
