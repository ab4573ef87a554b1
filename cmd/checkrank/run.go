package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/checkrank/internal/dataset"
	"github.com/stellarlinkco/checkrank/internal/store"
	"github.com/stellarlinkco/checkrank/internal/task"
)

func newRunCmd(st *cliState) *cobra.Command {
	var (
		datasetName    string
		resumeID       string
		skipChecklists bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run (or resume) the evaluation pipeline for a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.loadConfig()
			if err != nil {
				return err
			}

			datasetName = strings.TrimSpace(datasetName)
			if datasetName == "" {
				return errors.New("run: --dataset is required")
			}
			if strings.TrimSpace(cfg.Eval.JudgeModel) == "" {
				return errors.New("run: judge_model not configured")
			}
			if strings.TrimSpace(cfg.Eval.LabelerModel) == "" {
				return errors.New("run: labeler_model not configured")
			}
			if strings.TrimSpace(cfg.Eval.GeneratorModel) == "" {
				return errors.New("run: generator_model not configured")
			}

			registry, err := dataset.NewRegistry(cfg.Eval.DatasetRoot)
			if err != nil {
				return err
			}
			artifacts, err := store.NewSQLiteStore(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer artifacts.Close()

			generatorBE, err := newBackend(cfg, cfg.Eval.GeneratorModel)
			if err != nil {
				return err
			}
			judgeBE, err := newBackend(cfg, cfg.Eval.JudgeModel)
			if err != nil {
				return err
			}
			labelerBE, err := newBackend(cfg, cfg.Eval.LabelerModel)
			if err != nil {
				return err
			}

			id := strings.TrimSpace(resumeID)
			if id == "" {
				id = task.NewID(datasetName, cfg.Eval.JudgeModel, time.Now().UTC().Format(time.RFC3339))
			}

			t := &task.Task{
				ID:                 id,
				Dataset:            datasetName,
				GeneratorModel:     cfg.Eval.GeneratorModel,
				JudgeModel:         cfg.Eval.JudgeModel,
				LabelerModel:       cfg.Eval.LabelerModel,
				Strategy:           cfg.Eval.Calibration,
				LabelThreshold:     cfg.Eval.LabelThreshold,
				GenerateChecklists: !skipChecklists,
			}

			orch := &task.Orchestrator{
				Registry:     registry,
				Store:        artifacts,
				Generator:    generatorBE,
				Judge:        judgeBE,
				Labeler:      labelerBE,
				ParseRetries: cfg.Eval.ParseRetries,
			}

			// Interrupt cancels in-flight work but leaves the task resumable
			// under the same id.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(stdoutWriter, "task %s: dataset=%s judge=%s\n", t.ID, t.Dataset, t.JudgeModel)
			if err := orch.Run(ctx, t); err != nil {
				return fmt.Errorf("%w (resume with --resume %s)", err, t.ID)
			}

			return printRanking(cmd.Context(), artifacts, t.ID)
		},
	}

	cmd.Flags().StringVar(&datasetName, "dataset", "", "dataset name under the registry root")
	cmd.Flags().StringVar(&resumeID, "resume", "", "resume an existing task id")
	cmd.Flags().BoolVar(&skipChecklists, "skip-checklist", false, "require a stored checklist set instead of generating one")

	return cmd
}

func printRanking(ctx context.Context, artifacts store.Store, taskID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := artifacts.GetRanking(ctx, taskID)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdoutWriter, "\nRanking (task %s):\n", taskID)
	for _, row := range rows {
		fmt.Fprintf(stdoutWriter, "%3d. %-40s %.4f\n", row.Rank, row.Model, row.Score)
	}
	return nil
}
