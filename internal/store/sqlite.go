package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite. Every stage write runs in one
// transaction so a crash mid-stage leaves the prior artifact or none.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			dataset TEXT NOT NULL,
			judge TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS checklists (
			dataset TEXT NOT NULL,
			generator TEXT NOT NULL,
			prompt_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			item TEXT NOT NULL,
			PRIMARY KEY (dataset, generator, prompt_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS judgments (
			task_id TEXT NOT NULL,
			labeler INTEGER NOT NULL,
			model TEXT NOT NULL,
			prompt_id TEXT NOT NULL,
			verdicts TEXT NOT NULL,
			PRIMARY KEY (task_id, labeler, model, prompt_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_judgments_task_model ON judgments(task_id, labeler, model)`,
		`CREATE TABLE IF NOT EXISTS calibrations (
			task_id TEXT PRIMARY KEY,
			strategy TEXT NOT NULL,
			params TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			task_id TEXT NOT NULL,
			model TEXT NOT NULL,
			prompt_id TEXT NOT NULL,
			score REAL NOT NULL,
			PRIMARY KEY (task_id, model, prompt_id)
		)`,
		`CREATE TABLE IF NOT EXISTS rankings (
			task_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			model TEXT NOT NULL,
			score REAL NOT NULL,
			PRIMARY KEY (task_id, rank)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) SaveTask(ctx context.Context, task *TaskRecord) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if task == nil {
		return errors.New("store: nil task")
	}
	id := strings.TrimSpace(task.ID)
	if id == "" {
		return errors.New("store: empty task id")
	}

	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, dataset, judge, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, task.Dataset, task.Judge, createdAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: insert task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*TaskRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty task id")
	}

	var rec TaskRecord
	var createdMS int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, dataset, judge, created_at FROM tasks WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Dataset, &rec.Judge, &createdMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: query task: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdMS).UTC()
	return &rec, nil
}

func (s *SQLiteStore) SaveChecklists(ctx context.Context, dataset, generator string, items map[string][]string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	dataset = strings.TrimSpace(dataset)
	generator = strings.TrimSpace(generator)
	if dataset == "" || generator == "" {
		return errors.New("store: missing dataset/generator")
	}
	if len(items) == 0 {
		return errors.New("store: empty checklist set")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM checklists WHERE dataset = ? AND generator = ?
		`, dataset, generator); err != nil {
			return fmt.Errorf("store: clear checklists: %w", err)
		}
		for promptID, list := range items {
			for pos, item := range list {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO checklists (dataset, generator, prompt_id, position, item)
					VALUES (?, ?, ?, ?, ?)
				`, dataset, generator, promptID, pos, item); err != nil {
					return fmt.Errorf("store: insert checklist item: %w", err)
				}
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetChecklists(ctx context.Context, dataset, generator string) (map[string][]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	dataset = strings.TrimSpace(dataset)
	generator = strings.TrimSpace(generator)
	if dataset == "" || generator == "" {
		return nil, errors.New("store: missing dataset/generator")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT prompt_id, item FROM checklists
		WHERE dataset = ? AND generator = ?
		ORDER BY prompt_id ASC, position ASC
	`, dataset, generator)
	if err != nil {
		return nil, fmt.Errorf("store: query checklists: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var promptID, item string
		if err := rows.Scan(&promptID, &item); err != nil {
			return nil, fmt.Errorf("store: scan checklist item: %w", err)
		}
		out[promptID] = append(out[promptID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan checklists: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQLiteStore) SaveJudgments(ctx context.Context, taskID string, labeler bool, rows []JudgmentRow) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return errors.New("store: empty task id")
	}
	if len(rows) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			for _, v := range row.Verdicts {
				if !v.Valid() {
					return fmt.Errorf("store: invalid verdict %q for %s/%s", v, row.Model, row.PromptID)
				}
			}
			verdicts, err := json.Marshal(row.Verdicts)
			if err != nil {
				return fmt.Errorf("store: marshal verdicts: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO judgments (task_id, labeler, model, prompt_id, verdicts)
				VALUES (?, ?, ?, ?, ?)
			`, taskID, boolToInt(labeler), row.Model, row.PromptID, string(verdicts)); err != nil {
				return fmt.Errorf("store: insert judgment: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetJudgments(ctx context.Context, taskID string, labeler bool) ([]JudgmentRow, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errors.New("store: empty task id")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT model, prompt_id, verdicts FROM judgments
		WHERE task_id = ? AND labeler = ?
		ORDER BY model ASC, prompt_id ASC
	`, taskID, boolToInt(labeler))
	if err != nil {
		return nil, fmt.Errorf("store: query judgments: %w", err)
	}
	defer rows.Close()

	var out []JudgmentRow
	for rows.Next() {
		var row JudgmentRow
		var verdicts string
		if err := rows.Scan(&row.Model, &row.PromptID, &verdicts); err != nil {
			return nil, fmt.Errorf("store: scan judgment: %w", err)
		}
		if err := json.Unmarshal([]byte(verdicts), &row.Verdicts); err != nil {
			return nil, fmt.Errorf("store: unmarshal verdicts: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan judgments: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) JudgedModels(ctx context.Context, taskID string, labeler bool) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errors.New("store: empty task id")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT model FROM judgments
		WHERE task_id = ? AND labeler = ?
	`, taskID, boolToInt(labeler))
	if err != nil {
		return nil, fmt.Errorf("store: query judged models: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var model string
		if err := rows.Scan(&model); err != nil {
			return nil, fmt.Errorf("store: scan judged model: %w", err)
		}
		out = append(out, model)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan judged models: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *SQLiteStore) SaveCalibration(ctx context.Context, taskID, strategy string, params []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	taskID = strings.TrimSpace(taskID)
	strategy = strings.TrimSpace(strategy)
	if taskID == "" || strategy == "" {
		return errors.New("store: missing task id/strategy")
	}
	if len(params) == 0 {
		return errors.New("store: empty calibration params")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO calibrations (task_id, strategy, params) VALUES (?, ?, ?)
	`, taskID, strategy, string(params))
	if err != nil {
		return fmt.Errorf("store: insert calibration: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCalibration(ctx context.Context, taskID string) (string, []byte, error) {
	if err := s.check(ctx); err != nil {
		return "", nil, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return "", nil, errors.New("store: empty task id")
	}

	var strategy, params string
	err := s.db.QueryRowContext(ctx, `
		SELECT strategy, params FROM calibrations WHERE task_id = ?
	`, taskID).Scan(&strategy, &params)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("store: query calibration: %w", err)
	}
	return strategy, []byte(params), nil
}

func (s *SQLiteStore) SaveScores(ctx context.Context, taskID string, rows []ScoreRow) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return errors.New("store: empty task id")
	}
	if len(rows) == 0 {
		return errors.New("store: empty score set")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM scores WHERE task_id = ?`, taskID); err != nil {
			return fmt.Errorf("store: clear scores: %w", err)
		}
		for _, row := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO scores (task_id, model, prompt_id, score) VALUES (?, ?, ?, ?)
			`, taskID, row.Model, row.PromptID, row.Score); err != nil {
				return fmt.Errorf("store: insert score: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetScores(ctx context.Context, taskID string) ([]ScoreRow, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errors.New("store: empty task id")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT model, prompt_id, score FROM scores
		WHERE task_id = ?
		ORDER BY model ASC, prompt_id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("store: query scores: %w", err)
	}
	defer rows.Close()

	var out []ScoreRow
	for rows.Next() {
		var row ScoreRow
		if err := rows.Scan(&row.Model, &row.PromptID, &row.Score); err != nil {
			return nil, fmt.Errorf("store: scan score: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan scores: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQLiteStore) SaveRanking(ctx context.Context, taskID string, rows []RankingRow) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return errors.New("store: empty task id")
	}
	if len(rows) == 0 {
		return errors.New("store: empty ranking")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rankings WHERE task_id = ?`, taskID); err != nil {
			return fmt.Errorf("store: clear ranking: %w", err)
		}
		for _, row := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO rankings (task_id, rank, model, score) VALUES (?, ?, ?, ?)
			`, taskID, row.Rank, row.Model, row.Score); err != nil {
				return fmt.Errorf("store: insert ranking row: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetRanking(ctx context.Context, taskID string) ([]RankingRow, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errors.New("store: empty task id")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rank, model, score FROM rankings
		WHERE task_id = ?
		ORDER BY rank ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("store: query ranking: %w", err)
	}
	defer rows.Close()

	var out []RankingRow
	for rows.Next() {
		var row RankingRow
		if err := rows.Scan(&row.Rank, &row.Model, &row.Score); err != nil {
			return nil, fmt.Errorf("store: scan ranking row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan ranking: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQLiteStore) check(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store: nil store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
