package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/coresim/internal/config"
	"github.com/me/coresim/internal/logging"
	"github.com/me/coresim/internal/metrics"
	"github.com/me/coresim/internal/server"
	"github.com/me/coresim/internal/store"
)

func main() {
	cfg := config.DefaultServerConfig()
	sim := config.DefaultSimConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.coresim/coresim.db)")
	flag.IntVar(&cfg.MaxTicks, "max-ticks", cfg.MaxTicks, "Tick limit applied to every API run")
	flag.IntVar(&cfg.MaxRuns, "max-runs", cfg.MaxRuns, "Simulations allowed to run at once")
	flag.IntVar(&sim.Cores, "cores", sim.Cores, "Number of simulated cores per run")
	flag.IntVar(&sim.LivelockTicks, "livelock-ticks", sim.LivelockTicks, "Default idle ticks before declaring livelock")
	hold := flag.String("hold", string(sim.Hold), "Default resource hold (tick, lifetime)")
	webUI := flag.Bool("ui", true, "Serve the HTML run browser under /ui")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	h, err := config.ParseHoldPolicy(*hold)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	sim.Hold = h
	if err := sim.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid simulation config: %v\n", err)
		os.Exit(2)
	}

	dbPath, err := config.ResolveDBPath(cfg.DBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", dbPath)

	serverOpts := []server.Option{
		server.WithSimConfig(sim),
		server.WithMetrics(metrics.NewCollector(true)),
	}
	if *webUI {
		serverOpts = append(serverOpts, server.WithUI())
	}
	srv := server.New(cfg, st, logger, serverOpts...)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "cores", sim.Cores, "max_runs", cfg.MaxRuns)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
