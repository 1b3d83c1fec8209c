package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	var (
		serverURL string
		trace     bool
	)

	cmd := &cobra.Command{
		Use:   "submit <workload.yaml>",
		Short: "Run a workload on a coresim server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				return errors.New("no server: pass --server or set CORESIM_SERVER")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read workload: %w", err)
			}

			run, err := NewClient(serverURL, logger).SubmitWorkload(cmd.Context(), data, trace)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:     %s\n", run.ID)
			fmt.Fprintf(out, "Policy:  %s\n", run.Policy)
			fmt.Fprintf(out, "Outcome: %s\n", run.Outcome)
			fmt.Fprintf(out, "Ticks:   %d\n", run.Ticks)
			return run.Result.Err()
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", defaultServer(), "coresim server URL (or CORESIM_SERVER env)")
	cmd.Flags().BoolVar(&trace, "trace", false, "Record every tick snapshot")
	return cmd
}
