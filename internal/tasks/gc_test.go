package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/dmm/internal/cache"
	"github.com/desertthunder/dmm/internal/library"
)

// seedStore commits one entry per key under the playlist's cache
// subdirectory and returns the store's keys.
func seedStore(t *testing.T, cacheRoot, slug string, keys ...library.FetchKey) {
	t.Helper()
	store, err := cache.Open(cacheRoot, slug)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	for _, key := range keys {
		handle, err := store.BeginWrite(key, "mp3")
		if err != nil {
			t.Fatalf("failed to begin write: %v", err)
		}
		if _, err := handle.Write([]byte("audio")); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if _, err := handle.Commit(); err != nil {
			t.Fatalf("failed to commit: %v", err)
		}
	}
}

func storeKeys(t *testing.T, cacheRoot, slug string) map[library.FetchKey]bool {
	t.Helper()
	store, err := cache.Open(cacheRoot, slug)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	entries, err := store.List()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	keys := map[library.FetchKey]bool{}
	for _, entry := range entries {
		keys[entry.Key] = true
	}
	return keys
}

func TestCollector(t *testing.T) {
	t.Run("RemovesOnlyUnreferenced", func(t *testing.T) {
		lib := testLibrary(t, library.Playlist{
			Name:   "Keep",
			Tracks: []library.Track{track("A", "url-1"), track("B", "url-2")},
		})
		pl := &lib.Playlists[0]
		src := &pl.Sources[0]

		liveA := library.KeyFor(src, "url-1")
		liveB := library.KeyFor(src, "url-2")
		stale := library.KeyFor(src, "url-removed")
		seedStore(t, lib.Dirs.Cache, pl.Slug(), liveA, liveB, stale)

		report, err := NewCollector(lib).Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("gc failed: %v", err)
		}

		if report.EntriesRemoved != 1 {
			t.Errorf("expected 1 entry removed, got %d", report.EntriesRemoved)
		}
		if report.BytesFreed != 5 {
			t.Errorf("expected 5 bytes freed, got %d", report.BytesFreed)
		}

		remaining := storeKeys(t, lib.Dirs.Cache, pl.Slug())
		if !remaining[liveA] || !remaining[liveB] {
			t.Error("live entries must survive collection")
		}
		if remaining[stale] {
			t.Error("stale entry must be removed")
		}
	})

	t.Run("SecondRunRemovesNothing", func(t *testing.T) {
		lib := testLibrary(t, library.Playlist{
			Name:   "Stable",
			Tracks: []library.Track{track("A", "url-1")},
		})
		pl := &lib.Playlists[0]
		seedStore(t, lib.Dirs.Cache, pl.Slug(),
			library.KeyFor(&pl.Sources[0], "url-1"),
			library.KeyFor(&pl.Sources[0], "url-stale"))

		collector := NewCollector(lib)
		if _, err := collector.Run(context.Background(), nil); err != nil {
			t.Fatalf("first gc failed: %v", err)
		}

		report, err := collector.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("second gc failed: %v", err)
		}
		if report.EntriesRemoved != 0 || report.BytesFreed != 0 {
			t.Errorf("second run should be a no-op, removed %d entries (%d bytes)",
				report.EntriesRemoved, report.BytesFreed)
		}
	})

	t.Run("DropsDeletedPlaylistSubtree", func(t *testing.T) {
		lib := testLibrary(t, library.Playlist{
			Name:   "Kept Playlist",
			Tracks: []library.Track{track("A", "url-1")},
		})
		seedStore(t, lib.Dirs.Cache, lib.Playlists[0].Slug(),
			library.KeyFor(&lib.Playlists[0].Sources[0], "url-1"))

		src := testSource()
		seedStore(t, lib.Dirs.Cache, "deleted_playlist",
			library.KeyFor(&src, "url-old-1"),
			library.KeyFor(&src, "url-old-2"))

		report, err := NewCollector(lib).Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("gc failed: %v", err)
		}

		if report.PlaylistsDropped != 1 {
			t.Errorf("expected 1 playlist dropped, got %d", report.PlaylistsDropped)
		}
		if report.EntriesRemoved != 2 {
			t.Errorf("expected 2 entries removed, got %d", report.EntriesRemoved)
		}
		if _, err := os.Stat(filepath.Join(lib.Dirs.Cache, "deleted_playlist")); !os.IsNotExist(err) {
			t.Error("deleted playlist's cache subtree should be gone")
		}
		if _, err := os.Stat(filepath.Join(lib.Dirs.Cache, lib.Playlists[0].Slug())); err != nil {
			t.Errorf("kept playlist's cache subtree should remain: %v", err)
		}
	})

	t.Run("EmptyCacheIsFine", func(t *testing.T) {
		lib := testLibrary(t, library.Playlist{
			Name:   "Nothing Downloaded",
			Tracks: []library.Track{track("A", "url-1")},
		})

		report, err := NewCollector(lib).Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("gc failed: %v", err)
		}
		if report.EntriesRemoved != 0 || report.PlaylistsDropped != 0 {
			t.Errorf("expected no-op on empty cache, got %+v", report)
		}
	})
}
