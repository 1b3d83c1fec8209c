package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/coresim/internal/config"
	"github.com/me/coresim/internal/report"
	"github.com/me/coresim/internal/scheduler"
	"github.com/me/coresim/internal/store"
	"github.com/me/coresim/internal/workload"
	"github.com/me/coresim/pkg/model"
)

type runOptions struct {
	file          string
	stdin         bool
	policy        string
	hold          string
	cores         int
	maxTicks      int
	livelockTicks int
	strict        bool
	output        string
	save          bool
	trace         bool
	db            string
	watch         bool
}

func newRunCmd() *cobra.Command {
	var o runOptions

	cmd := &cobra.Command{
		Use:   "run [workload.yaml]",
		Short: "Simulate a workload and print every clock tick",
		Long: `Simulate a workload locally.

The workload is a YAML or JSON file, or the interactive text format
(policy number, A B C capacities, task count, then "name kind total" lines)
read from stdin with --stdin or "-". The format is detected from the input.

Flags override the workload's policy and options. A run that livelocks
prints its waiting queue and exits non-zero.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				o.file = args[0]
			}
			if o.file == "" && !o.stdin {
				return errors.New("no workload: pass a file, \"-\" or --stdin")
			}
			if o.watch && (o.file == "" || o.file == "-") {
				return errors.New("--watch needs a workload file")
			}
			if o.trace && !o.save {
				return errors.New("--trace needs --save")
			}
			format, err := report.ParseFormat(o.output)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if o.watch {
				return watchWorkload(ctx, cmd, &o, format)
			}

			wl, err := o.load(cmd.InOrStdin())
			if err != nil {
				return err
			}
			res, err := simulate(ctx, cmd, &o, format, wl)
			if err != nil {
				return err
			}
			return res.Err()
		},
	}

	f := cmd.Flags()
	f.BoolVar(&o.stdin, "stdin", false, "Read the workload from stdin")
	f.StringVarP(&o.policy, "policy", "p", "", "Override the policy (FCFS, SJF, RR, MLQ or 1-4)")
	f.StringVar(&o.hold, "hold", "", "Resource hold for preemptive units (tick, lifetime)")
	f.IntVarP(&o.cores, "cores", "n", config.DefaultCores, "Number of simulated cores")
	f.IntVar(&o.maxTicks, "max-ticks", 0, "Stop after this many ticks (0 = unlimited)")
	f.IntVar(&o.livelockTicks, "livelock-ticks", 0, "Idle ticks before declaring livelock (0 = default)")
	f.BoolVar(&o.strict, "strict", false, "Check scheduling invariants after every tick")
	f.StringVarP(&o.output, "output", "o", "text", "Output format (text, json, quiet)")
	f.BoolVar(&o.save, "save", false, "Record the run in the ledger")
	f.BoolVar(&o.trace, "trace", false, "With --save, also record every tick snapshot")
	f.StringVar(&o.db, "db", "", "Ledger database path (default ~/.coresim/coresim.db)")
	f.BoolVarP(&o.watch, "watch", "w", false, "Re-run whenever the workload file changes")

	return cmd
}

// load reads the workload from the file or stdin and detects its format.
func (o *runOptions) load(stdin io.Reader) (*model.Workload, error) {
	var (
		data []byte
		err  error
		name = o.file
	)
	if o.file == "" || o.file == "-" {
		name = "stdin"
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(o.file)
	}
	if err != nil {
		return nil, fmt.Errorf("read workload: %w", err)
	}

	var wl *model.Workload
	if workload.IsText(data) {
		wl, err = workload.ParseText(bytes.NewReader(data))
	} else {
		wl, err = workload.Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return wl, nil
}

// apply folds explicitly set flags into the workload and the base config.
func (o *runOptions) apply(cmd *cobra.Command, wl *model.Workload) (config.SimConfig, error) {
	cfg := config.DefaultSimConfig()
	cfg.Cores = o.cores
	cfg.Strict = o.strict

	flags := cmd.Flags()
	if flags.Changed("policy") {
		p, err := model.ParsePolicy(o.policy)
		if err != nil {
			return cfg, err
		}
		wl.Policy = p
	}
	if flags.Changed("hold") || flags.Changed("max-ticks") || flags.Changed("livelock-ticks") {
		if wl.Options == nil {
			wl.Options = &model.Options{}
		}
	}
	if flags.Changed("hold") {
		wl.Options.Hold = o.hold
	}
	if flags.Changed("max-ticks") {
		wl.Options.MaxTicks = o.maxTicks
	}
	if flags.Changed("livelock-ticks") {
		wl.Options.LivelockTicks = o.livelockTicks
	}
	return cfg, nil
}

// simulate runs one workload, printing it as it goes, and records it when
// --save is set. Livelock is left to the caller via Result.Err.
func simulate(ctx context.Context, cmd *cobra.Command, o *runOptions, format report.Format, wl *model.Workload) (*model.Result, error) {
	cfg, err := o.apply(cmd, wl)
	if err != nil {
		return nil, err
	}

	printer := report.NewPrinter(cmd.OutOrStdout(), format)
	observers := []scheduler.Observer{printer}
	var tr store.Trace
	if o.trace {
		observers = append(observers, &tr)
	}

	sim, err := scheduler.New(*wl, cfg, logger, observers...)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := sim.Run(ctx)
	if err != nil {
		return res, fmt.Errorf("simulate: %w", err)
	}
	if err := printer.Err(); err != nil {
		return res, fmt.Errorf("write report: %w", err)
	}

	if o.save {
		final := sim.Config()
		run := model.NewRun(store.NewRunID(), *wl, res, final.Cores, string(final.Hold), time.Since(start))
		if err := saveRun(ctx, o.db, run, &tr, o.trace); err != nil {
			return res, err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved run %s\n", run.ID)
	}
	return res, nil
}

func saveRun(ctx context.Context, dbPath string, run *model.Run, tr *store.Trace, trace bool) error {
	st, err := openStore(ctx, dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if trace {
		if err := tr.Flush(ctx, st, run.ID); err != nil {
			return fmt.Errorf("save trace: %w", err)
		}
		logger.Debug("trace saved", "run_id", run.ID, "ticks", tr.Len())
	}
	return nil
}

// openStore opens and migrates the ledger at dbPath, or the default path.
func openStore(ctx context.Context, dbPath string) (*store.SQLiteStore, error) {
	path, err := config.ResolveDBPath(dbPath)
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(path, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return st, nil
}
