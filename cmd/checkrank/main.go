package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/checkrank/internal/config"
)

type cliState struct {
	configPath string
	cfg        *config.Config
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
	stdoutWriter io.Writer = os.Stdout
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "checkrank",
		Short:         "Checklist-based model evaluation and ranking",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")

	root.AddCommand(newRunCmd(st))
	root.AddCommand(newRankCmd(st))
	root.AddCommand(newExportCmd(st))
	root.AddCommand(newServeCmd(st))

	return root
}

func (st *cliState) loadConfig() (*config.Config, error) {
	if st.cfg != nil {
		return st.cfg, nil
	}
	cfg, err := config.Load(st.configPath)
	if err != nil {
		return nil, err
	}
	st.cfg = cfg
	return cfg, nil
}
