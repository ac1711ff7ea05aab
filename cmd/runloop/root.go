package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "dev"

type rootCmd struct {
	cmd      *cobra.Command
	cfgPath  string
	logLevel string
	exitCode int
}

func newRootCmd() *rootCmd {
	r := &rootCmd{}
	r.cmd = &cobra.Command{
		Use:           "runloop",
		Short:         "Run engines on a single-threaded event loop",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	r.cmd.PersistentFlags().StringVarP(&r.cfgPath, "config", "c", "", "path to a YAML config file")
	r.cmd.PersistentFlags().StringVar(&r.logLevel, "log-level", "", "override the configured log level")

	r.cmd.AddCommand(r.newRunCmd(), newVersionCmd())
	return r
}

func (r *rootCmd) execute() (int, error) {
	if err := r.cmd.Execute(); err != nil {
		return 1, err
	}
	return r.exitCode, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "runloop "+version)
		},
	}
}
