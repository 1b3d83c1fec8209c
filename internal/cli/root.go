// Package cli implements the coresim command line: run workloads locally,
// serve the API, and browse the run ledger.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/coresim/internal/logging"
	"github.com/me/coresim/internal/server"
)

var (
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// defaultServer returns the server URL from CORESIM_SERVER, or "" for the
// local ledger.
func defaultServer() string {
	return os.Getenv("CORESIM_SERVER")
}

// NewRootCmd creates the root cobra command for the coresim CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coresim",
		Short: "coresim: lockstep multi-core scheduler simulator",
		Long: "coresim simulates cores sharing three resource kinds under FCFS, SJF, RR or\n" +
			"multi-level queue scheduling, one clock tick at a time.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			level, err := logging.LookupLevel(flagLogLevel)
			if err != nil {
				return err
			}
			if err := logging.CheckFormat(flagLogFormat); err != nil {
				return err
			}
			logger = logging.NewLoggerWithWriter(level, flagLogFormat, cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newSubmitCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newDeleteCmd(),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the coresim version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "coresim %s\n", server.Version)
		},
	}
}
