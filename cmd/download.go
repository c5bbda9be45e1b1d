package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/dmm/internal/fetch"
	"github.com/desertthunder/dmm/internal/library"
	"github.com/desertthunder/dmm/internal/shared"
	"github.com/desertthunder/dmm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// downloadCommand materializes playlists into the local cache.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Fetch every missing track of a playlist (or of all playlists)",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "playlist",
			},
		},
		Action: r.Download,
	}
}

// Download fetches missing cache entries for the named playlist, or
// for every playlist when the argument is "all". Partial failures
// leave successful fetches committed and exit non-zero.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	fragment := cmd.StringArg("playlist")
	if fragment == "" {
		return fmt.Errorf("%w: expected a playlist name or \"all\"", shared.ErrMissingArgument)
	}

	lib, err := r.resolveLibrary()
	if err != nil {
		return err
	}

	executor := &fetch.Executor{
		Timeout: time.Duration(lib.Config.Download.FetchTimeoutSecs) * time.Second,
	}
	downloader := tasks.NewDownloader(lib, executor)

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	var reports []*tasks.Report
	if fragment == "all" {
		reports, err = downloader.RunAll(ctx, progress)
	} else {
		var pl *library.Playlist
		if pl, err = r.resolvePlaylist(lib, fragment); err == nil {
			var report *tasks.Report
			if report, err = downloader.Run(ctx, progress, pl); report != nil {
				reports = append(reports, report)
			}
		}
	}
	close(progress)
	<-done
	if err != nil {
		return err
	}

	failed := 0
	for _, report := range reports {
		r.writePlainln("%s: %d fetched, %d cached, %d failed",
			report.Playlist, report.Fetched, report.Skipped, report.Failed())
		for _, failure := range report.Failures {
			r.writePlain("  ✗ %s - %s (%s): %v\n",
				failure.Track.Meta.Artist, failure.Track.Meta.Name, failure.Key, failure.Err)
		}
		failed += report.Failed()
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d tracks failed to fetch", failed), 1)
	}
	return nil
}
