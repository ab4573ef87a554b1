package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/checkrank/internal/store"
)

func newRankCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank <task-id>",
		Short: "Print the stored ranking for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.loadConfig()
			if err != nil {
				return err
			}

			taskID := strings.TrimSpace(args[0])
			if taskID == "" {
				return errors.New("rank: empty task id")
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
			return printRanking(ctx, artifacts, taskID)
		},
	}
	return cmd
}
