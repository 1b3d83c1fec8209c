package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/coresim/internal/config"
	"github.com/me/coresim/internal/metrics"
	"github.com/me/coresim/internal/server"
	"github.com/me/coresim/internal/store"
)

func newServeCmd() *cobra.Command {
	cfg := config.DefaultServerConfig()
	sim := config.DefaultSimConfig()
	var (
		hold  string
		webUI bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulator over HTTP",
		Long: `Serve the REST API: POST /api/v1/runs simulates a workload and records it
in the ledger, GET /api/v1/runs lists past runs, and /metrics exposes
Prometheus metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := config.ParseHoldPolicy(hold)
			if err != nil {
				return err
			}
			sim.Hold = h
			if err := sim.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, sim, webUI)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	f.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.coresim/coresim.db)")
	f.IntVar(&cfg.MaxTicks, "max-ticks", cfg.MaxTicks, "Tick limit applied to every API run")
	f.IntVar(&cfg.MaxRuns, "max-runs", cfg.MaxRuns, "Simulations allowed to run at once")
	f.IntVarP(&sim.Cores, "cores", "n", sim.Cores, "Number of simulated cores per run")
	f.IntVar(&sim.LivelockTicks, "livelock-ticks", sim.LivelockTicks, "Default idle ticks before declaring livelock")
	f.StringVar(&hold, "hold", string(sim.Hold), "Default resource hold (tick, lifetime)")
	f.BoolVar(&webUI, "ui", true, "Serve the HTML run browser under /ui")

	return cmd
}

func serve(ctx context.Context, cfg config.ServerConfig, sim config.SimConfig, webUI bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("database ready", "path", cfg.DBPath)

	return listenAndServe(ctx, cfg, sim, st, webUI)
}

func listenAndServe(ctx context.Context, cfg config.ServerConfig, sim config.SimConfig, st store.Store, webUI bool) error {
	opts := []server.Option{
		server.WithSimConfig(sim),
		server.WithMetrics(metrics.NewCollector(true)),
	}
	if webUI {
		opts = append(opts, server.WithUI())
	}
	srv := server.New(cfg, st, logger, opts...)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "cores", sim.Cores, "max_runs", cfg.MaxRuns)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
