package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/checkrank/internal/ranking"
	"github.com/stellarlinkco/checkrank/internal/store"
)

func newExportCmd(st *cliState) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <task-id>",
		Short: "Export pairwise outcomes for an external leaderboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.loadConfig()
			if err != nil {
				return err
			}

			taskID := strings.TrimSpace(args[0])
			if taskID == "" {
				return errors.New("export: empty task id")
			}

			artifacts, err := store.NewSQLiteStore(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer artifacts.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			scores, err := artifacts.GetScores(ctx, taskID)
			if err != nil {
				return err
			}

			var out io.Writer = stdoutWriter
			if p := strings.TrimSpace(outPath); p != "" {
				f, err := os.Create(p)
				if err != nil {
					return fmt.Errorf("export: create %q: %w", p, err)
				}
				defer f.Close()
				out = f
			}

			return writePairwiseCSV(out, ranking.Pairwise(scores))
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	return cmd
}

func writePairwiseCSV(out io.Writer, records []ranking.PairwiseRecord) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"model_a", "model_b", "prompt_id", "outcome"}); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write([]string{rec.ModelA, rec.ModelB, rec.PromptID, string(rec.Outcome)}); err != nil {
			return fmt.Errorf("export: write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}
