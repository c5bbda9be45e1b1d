package tasks

import (
	"context"
	"os"
	"path/filepath"

	"github.com/desertthunder/dmm/internal/cache"
	"github.com/desertthunder/dmm/internal/library"
)

// GcReport aggregates the outcome of a collection pass.
type GcReport struct {
	EntriesRemoved   int
	BytesFreed       int64
	PlaylistsDropped int
	Failures         []error
}

// Collector removes cache entries unreferenced by current playlist
// declarations.
type Collector struct {
	lib *library.Library
}

// NewCollector creates a Collector for the given library.
func NewCollector(lib *library.Library) *Collector {
	return &Collector{lib: lib}
}

// Run computes the live fetch keys of every known playlist and deletes
// every cache entry outside that set. Cache subtrees for playlists
// that no longer exist are dropped entirely. Running twice with no
// playlist changes removes nothing.
//
// Deletion is a plain file removal: an active playback session keeps
// its own open handle on the file it plays, so no coordination with a
// player is required.
func (c *Collector) Run(ctx context.Context, progress chan<- ProgressUpdate) (*GcReport, error) {
	live := map[string]map[library.FetchKey]bool{}
	for i := range c.lib.Playlists {
		pl := &c.lib.Playlists[i]
		keys := map[library.FetchKey]bool{}
		for _, track := range pl.Tracks {
			src, err := pl.FindSource(track.Src)
			if err != nil {
				return nil, err
			}
			keys[library.KeyFor(src, track.Input)] = true
		}
		live[pl.Slug()] = keys
		sendProgress(progress, scanUpdate(pl.Name, len(keys)))
	}

	slugs, err := cache.Subdirs(c.lib.Dirs.Cache)
	if err != nil {
		return nil, err
	}

	report := &GcReport{}
	for _, slug := range slugs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		keys, known := live[slug]
		if err := c.sweep(progress, slug, keys, report); err != nil {
			return report, err
		}

		if !known {
			// playlist no longer declared; drop its whole subtree
			if err := os.RemoveAll(filepath.Join(c.lib.Dirs.Cache, slug)); err != nil {
				return report, err
			}
			report.PlaylistsDropped++
		}
	}

	return report, nil
}

// sweep removes every entry of one playlist's store whose key is not
// in keys. A nil key set removes everything.
func (c *Collector) sweep(progress chan<- ProgressUpdate, slug string, keys map[library.FetchKey]bool, report *GcReport) error {
	store, err := cache.Open(c.lib.Dirs.Cache, slug)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List()
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if keys[entry.Key] {
			continue
		}
		freed, err := store.Remove(entry.Key)
		if err != nil {
			// one entry's failure never aborts the sweep
			report.Failures = append(report.Failures, err)
			continue
		}
		report.EntriesRemoved++
		report.BytesFreed += freed
		sendProgress(progress, sweepUpdate(slug, entry.Key, freed))
	}
	return nil
}
