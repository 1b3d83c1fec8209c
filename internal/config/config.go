package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/me/coresim/pkg/model"
)

// DefaultCores is the number of simulated cores.
const DefaultCores = 4

// HoldPolicy decides how long preemptive (RR and MLQ Z/Y) units keep their
// resource pair.
type HoldPolicy string

const (
	// HoldTick acquires the pair at the start of each unit and releases it at
	// the end, so another task may take it between ticks.
	HoldTick HoldPolicy = "tick"
	// HoldLifetime keeps the pair from a task's first unit until it completes.
	HoldLifetime HoldPolicy = "lifetime"
)

// ParseHoldPolicy accepts "tick" or "lifetime"; empty means HoldTick.
func ParseHoldPolicy(s string) (HoldPolicy, error) {
	switch HoldPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", HoldTick:
		return HoldTick, nil
	case HoldLifetime:
		return HoldLifetime, nil
	}
	return "", fmt.Errorf("unknown hold policy %q (want tick or lifetime)", s)
}

// SimConfig holds configuration for a single simulation run.
type SimConfig struct {
	Cores         int        // Number of simulated cores (default 4)
	LivelockTicks int        // Consecutive fully idle ticks before declaring livelock
	MaxTicks      int        // Hard stop; 0 means unlimited
	Hold          HoldPolicy // Resource hold policy for preemptive units
	Strict        bool       // Check invariants after every tick and panic on violation
}

// DefaultSimConfig returns sensible defaults.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Cores:         DefaultCores,
		LivelockTicks: 8,
		Hold:          HoldTick,
	}
}

// WithOptions applies per-workload overrides. Zero fields leave the default.
func (c SimConfig) WithOptions(o *model.Options) (SimConfig, error) {
	if o == nil {
		return c, nil
	}
	if o.LivelockTicks > 0 {
		c.LivelockTicks = o.LivelockTicks
	}
	if o.MaxTicks > 0 {
		c.MaxTicks = o.MaxTicks
	}
	if o.Hold != "" {
		h, err := ParseHoldPolicy(o.Hold)
		if err != nil {
			return c, err
		}
		c.Hold = h
	}
	return c, nil
}

// Validate rejects configurations the coordinator cannot run.
func (c SimConfig) Validate() error {
	if c.Cores <= 0 {
		return fmt.Errorf("cores must be positive, got %d", c.Cores)
	}
	if c.LivelockTicks <= 0 {
		return fmt.Errorf("livelock ticks must be positive, got %d", c.LivelockTicks)
	}
	if c.MaxTicks < 0 {
		return fmt.Errorf("max ticks must be non-negative, got %d", c.MaxTicks)
	}
	if _, err := ParseHoldPolicy(string(c.Hold)); err != nil {
		return err
	}
	return nil
}

// ServerConfig holds configuration for the coresim API server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ~/.coresim/coresim.db, ":memory:" for testing)
	MaxTicks  int    // Upper bound applied to every API run
	MaxRuns   int    // Simulations allowed to run at once
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		MaxTicks:  10000,
		MaxRuns:   4,
	}
}

// ResolveDBPath returns path, or ~/.coresim/coresim.db when path is empty,
// creating the directory as needed.
func ResolveDBPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".coresim")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return filepath.Join(dir, "coresim.db"), nil
}
