package tasks

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/desertthunder/dmm/internal/cache"
	"github.com/desertthunder/dmm/internal/library"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Fetcher obtains raw audio for a (source, input) pair, leaving it at
// dest. Satisfied by [fetch.Executor]; abstracted for testing.
type Fetcher interface {
	Fetch(ctx context.Context, src *library.Source, input, dest string) error
}

// TrackFailure records one track whose fetch did not commit.
type TrackFailure struct {
	Track library.Track
	Key   library.FetchKey
	Err   error
}

// Report aggregates the outcome of downloading one playlist.
//
// Counts are per track, not per fetch: tracks sharing a fetch key all
// succeed or fail together even though the key is fetched once.
type Report struct {
	Playlist string
	Skipped  int
	Fetched  int
	Failures []TrackFailure
}

// Failed returns the number of tracks whose fetch failed.
func (r *Report) Failed() int { return len(r.Failures) }

// Downloader materializes playlists into the cache.
type Downloader struct {
	lib     *library.Library
	fetcher Fetcher
	workers int
	limiter *rate.Limiter
}

// NewDownloader creates a Downloader for the given library. Worker
// count and spawn rate come from the library's configuration.
func NewDownloader(lib *library.Library, fetcher Fetcher) *Downloader {
	workers := lib.Config.Download.Workers
	if workers < 1 {
		workers = 1
	}

	limit := rate.Limit(lib.Config.Download.FetchRate)
	if limit <= 0 {
		limit = rate.Inf
	}

	return &Downloader{
		lib:     lib,
		fetcher: fetcher,
		workers: workers,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// fetchJob is one deduplicated (source, input) pair and every track
// that references it.
type fetchJob struct {
	key    library.FetchKey
	source *library.Source
	input  string
	tracks []library.Track
}

// Run downloads a single playlist. Individual fetch failures are
// recorded in the report, not returned; the error covers conditions
// that prevent any progress (cache unavailable, context canceled).
func (d *Downloader) Run(ctx context.Context, progress chan<- ProgressUpdate, pl *library.Playlist) (*Report, error) {
	return d.run(ctx, progress, pl, nil)
}

// RunAll downloads every playlist in the library. A fetch key shared
// across playlists is fetched once and copied into each referencing
// playlist's cache.
func (d *Downloader) RunAll(ctx context.Context, progress chan<- ProgressUpdate) ([]*Report, error) {
	fetched := &fetchedFiles{files: map[library.FetchKey]string{}}

	var reports []*Report
	for i := range d.lib.Playlists {
		report, err := d.run(ctx, progress, &d.lib.Playlists[i], fetched)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// fetchedFiles tracks files already fetched during a RunAll pass so a
// key referenced from several playlists executes exactly one fetch.
type fetchedFiles struct {
	mu    sync.Mutex
	files map[library.FetchKey]string
}

func (f *fetchedFiles) get(key library.FetchKey) (string, bool) {
	if f == nil {
		return "", false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path, ok := f.files[key]
	return path, ok
}

func (f *fetchedFiles) put(key library.FetchKey, path string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = path
}

func (d *Downloader) run(ctx context.Context, progress chan<- ProgressUpdate, pl *library.Playlist, fetched *fetchedFiles) (*Report, error) {
	store, err := cache.Open(d.lib.Dirs.Cache, pl.Slug())
	if err != nil {
		return nil, err
	}
	defer store.Close()

	report := &Report{Playlist: pl.Name}

	// distinct (source, input) pairs; dedup is mandatory
	jobIndex := map[library.FetchKey]*fetchJob{}
	var jobs []*fetchJob
	for _, track := range pl.Tracks {
		src, err := pl.FindSource(track.Src)
		if err != nil {
			return nil, err
		}
		key := library.KeyFor(src, track.Input)
		if job, ok := jobIndex[key]; ok {
			job.tracks = append(job.tracks, track)
			continue
		}
		job := &fetchJob{key: key, source: src, input: track.Input, tracks: []library.Track{track}}
		jobIndex[key] = job
		jobs = append(jobs, job)
	}

	var pending []*fetchJob
	for _, job := range jobs {
		has, err := store.Has(job.key)
		if err != nil {
			return nil, err
		}
		if has {
			report.Skipped += len(job.tracks)
			sendProgress(progress, skipUpdate(&job.tracks[0], job.key))
			continue
		}
		pending = append(pending, job)
	}

	sendProgress(progress, planUpdate(pl.Name, len(pending), report.Skipped))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	total := len(pending)
	for i, job := range pending {
		step := i + 1
		g.Go(func() error {
			// a canceled context stops issuing fetches; in-flight
			// commands finish or time out on their own
			if err := d.limiter.Wait(gctx); err != nil {
				return err
			}

			sendProgress(progress, fetchUpdate(step, total, &job.tracks[0]))

			entry, err := d.fetchOne(gctx, store, job, fetched)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sendProgress(progress, failUpdate(step, total, &job.tracks[0], err))
				for _, track := range job.tracks {
					report.Failures = append(report.Failures, TrackFailure{Track: track, Key: job.key, Err: err})
				}
				return nil
			}
			sendProgress(progress, commitUpdate(step, total, &job.tracks[0], entry.Bytes))
			report.Fetched += len(job.tracks)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("download interrupted: %w", err)
	}
	return report, nil
}

func (d *Downloader) fetchOne(ctx context.Context, store *cache.Store, job *fetchJob, fetched *fetchedFiles) (cache.Entry, error) {
	handle, err := store.BeginWrite(job.key, job.source.Format)
	if err != nil {
		return cache.Entry{}, err
	}
	defer handle.Discard()

	if path, ok := fetched.get(job.key); ok {
		if err := copyFile(path, handle); err != nil {
			return cache.Entry{}, err
		}
	} else if err := d.fetcher.Fetch(ctx, job.source, job.input, handle.Path()); err != nil {
		return cache.Entry{}, err
	}

	entry, err := handle.Commit()
	if err != nil {
		return cache.Entry{}, err
	}
	fetched.put(job.key, entry.File)
	return entry, nil
}

func copyFile(path string, dst io.Writer) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(dst, src)
	return err
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}
