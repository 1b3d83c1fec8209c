package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/me/coresim/internal/report"
	"github.com/me/coresim/pkg/model"
)

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 100 * time.Millisecond

// watchWorkload runs the workload, then again after every change to the
// file, until ctx is done. Bad edits and livelocks are reported and the
// watch continues.
func watchWorkload(ctx context.Context, cmd *cobra.Command, o *runOptions, format report.Format) error {
	path, err := filepath.Abs(o.file)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	runOnce := func() {
		wl, err := o.load(nil)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			return
		}
		res, err := simulate(ctx, cmd, o, format, wl)
		if err == nil {
			err = res.Err()
		}
		switch {
		case err == nil, errors.Is(err, context.Canceled):
		case errors.Is(err, model.ErrLivelock):
			logger.Warn("workload livelocked", "file", o.file, "tick", res.Ticks)
		default:
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
	}

	runOnce()
	logger.Info("watching workload", "file", path)

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("fsnotify", "op", event.Op.String(), "file", event.Name)
			if timer == nil {
				timer = time.AfterFunc(watchDebounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(watchDebounce)
			}

		case <-fire:
			fmt.Fprintf(cmd.ErrOrStderr(), "%s changed, re-running\n", o.file)
			runOnce()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("fsnotify error", "error", err)
		}
	}
}
