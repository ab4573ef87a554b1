package main

import (
	"github.com/spf13/cobra"

	"github.com/stellarlinkco/checkrank/api"
	"github.com/stellarlinkco/checkrank/internal/store"
)

func newServeCmd(st *cliState) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve task rankings and scores over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.loadConfig()
			if err != nil {
				return err
			}

			artifacts, err := store.NewSQLiteStore(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer artifacts.Close()

			srv, err := api.NewServer(artifacts)
			if err != nil {
				return err
			}
			return srv.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
