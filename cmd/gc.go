package main

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dmm/internal/shared"
	"github.com/desertthunder/dmm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// gcCommand removes unreferenced cache entries.
func gcCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "gc",
		Usage: "Delete cached tracks no longer referenced by any playlist",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log every swept cache entry",
			},
		},
		Action: r.Gc,
	}
}

// Gc sweeps the cache against the current playlist declarations.
// Per-entry sweep detail is logged at debug level; --verbose lowers
// the logger to it.
func (r *Runner) Gc(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	lib, err := r.resolveLibrary()
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Debug(update.Message)
		}
	}()

	report, err := tasks.NewCollector(lib).Run(ctx, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	for _, failure := range report.Failures {
		r.logger.Warn("failed to remove entry", "err", failure)
	}
	r.writePlainln("removed %d entries (%d bytes), dropped %d stale playlists",
		report.EntriesRemoved, report.BytesFreed, report.PlaylistsDropped)
	return nil
}
