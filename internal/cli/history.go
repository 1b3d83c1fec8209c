package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/coresim/internal/report"
	"github.com/me/coresim/pkg/model"
)

// ledger is the read side of the run ledger, served by a local store or a
// remote server.
type ledger interface {
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	ListTicks(ctx context.Context, runID string, opts model.ListOptions) ([]model.TickSnapshot, int, error)
	DeleteRun(ctx context.Context, id string) error
	Close() error
}

type ledgerFlags struct {
	server string
	db     string
}

func (f *ledgerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", defaultServer(), "Read from a coresim server instead of the local ledger")
	cmd.Flags().StringVar(&f.db, "db", "", "Ledger database path (default ~/.coresim/coresim.db)")
}

func (f *ledgerFlags) open(ctx context.Context) (ledger, error) {
	if f.server != "" {
		return NewClient(f.server, logger), nil
	}
	st, err := openStore(ctx, f.db)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func newHistoryCmd() *cobra.Command {
	var (
		lf   ledgerFlags
		opts = model.DefaultListOptions()
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := lf.open(cmd.Context())
			if err != nil {
				return err
			}
			defer l.Close()

			runs, total, err := l.ListRuns(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			fmt.Fprintf(out, "%-44s  %-6s  %-10s  %6s  %5s  %s\n", "ID", "POLICY", "OUTCOME", "TICKS", "TASKS", "CREATED")
			fmt.Fprintf(out, "%-44s  %-6s  %-10s  %6s  %5s  %s\n", "--", "------", "-------", "-----", "-----", "-------")
			for _, r := range runs {
				fmt.Fprintf(out, "%-44s  %-6s  %-10s  %6d  %5d  %s\n",
					r.ID, r.Policy, r.Outcome, r.Ticks, len(r.Workload.Tasks), r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			if opts.Offset+len(runs) < total {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(runs), total)
			}
			return nil
		},
	}

	lf.register(cmd)
	cmd.Flags().IntVar(&opts.Limit, "limit", opts.Limit, "Maximum runs to list")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Runs to skip")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "Only runs of this policy")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "Only runs with this outcome (terminated, livelock, max_ticks, cancelled)")
	return cmd
}

func newShowCmd() *cobra.Command {
	var (
		lf     ledgerFlags
		ticks  bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show a recorded run and, with --ticks, replay its trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(output)
			if err != nil {
				return err
			}
			l, err := lf.open(cmd.Context())
			if err != nil {
				return err
			}
			defer l.Close()

			id := args[0]
			run, err := l.GetRun(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			if run == nil {
				return fmt.Errorf("run %s not found", id)
			}

			out := cmd.OutOrStdout()
			printRun(out, run)

			if !ticks {
				return nil
			}
			fmt.Fprintln(out)
			p := report.NewPrinter(out, format)
			p.Resume(run.Policy)
			opts := model.ListOptions{Limit: 100}
			for {
				page, total, err := l.ListTicks(cmd.Context(), id, opts)
				if err != nil {
					return fmt.Errorf("list ticks: %w", err)
				}
				if total == 0 {
					fmt.Fprintln(out, "No trace recorded for this run.")
					return nil
				}
				for _, snap := range page {
					p.Tick(snap)
				}
				opts.Offset += len(page)
				if len(page) == 0 || opts.Offset >= total {
					break
				}
			}
			if run.Result != nil {
				p.Finish(*run.Result)
			}
			return p.Err()
		},
	}

	lf.register(cmd)
	cmd.Flags().BoolVar(&ticks, "ticks", false, "Replay the recorded tick snapshots")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Replay format (text, json)")
	return cmd
}

func printRun(out io.Writer, run *model.Run) {
	fmt.Fprintf(out, "Run:       %s\n", run.ID)
	fmt.Fprintf(out, "Policy:    %s\n", run.Policy)
	fmt.Fprintf(out, "Outcome:   %s\n", run.Outcome)
	fmt.Fprintf(out, "Ticks:     %d\n", run.Ticks)
	fmt.Fprintf(out, "Cores:     %d (hold %s)\n", run.Cores, run.Hold)
	fmt.Fprintf(out, "Resources: %s\n", report.Resources(run.Workload.Resources))
	fmt.Fprintf(out, "Created:   %s (%dms)\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"), run.DurationMS)

	fmt.Fprintln(out, "Tasks:")
	for _, t := range run.Workload.Tasks {
		fmt.Fprintf(out, "  %-12s %s  %d\n", t.Name, t.Kind, t.Total)
	}

	if run.Result == nil {
		return
	}
	if len(run.Result.Completed) > 0 {
		names := make([]string, len(run.Result.Completed))
		for i, t := range run.Result.Completed {
			names[i] = t.Name
		}
		fmt.Fprintf(out, "Completed: %s\n", strings.Join(names, ", "))
	}
	if len(run.Result.Stuck) > 0 {
		names := make([]string, len(run.Result.Stuck))
		for i, t := range run.Result.Stuck {
			names[i] = fmt.Sprintf("%s (%d/%d)", t.Name, t.Executed, t.Total)
		}
		fmt.Fprintf(out, "Stuck:     %s\n", strings.Join(names, ", "))
	}
}

func newDeleteCmd() *cobra.Command {
	var lf ledgerFlags

	cmd := &cobra.Command{
		Use:   "delete <run_id>...",
		Short: "Delete recorded runs and their traces",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := lf.open(cmd.Context())
			if err != nil {
				return err
			}
			defer l.Close()

			for _, id := range args {
				if err := l.DeleteRun(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}

	lf.register(cmd)
	return cmd
}
