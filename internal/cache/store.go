// package cache implements the content-addressed audio cache.
//
// Each playlist owns one subdirectory under cache/ holding its audio
// files, addressed by fetch key, plus a SQLite manifest (index.db)
// recording byte length and fetch time per entry. Writers stage into
// a temporary .part file and commit with a rename, so readers never
// observe a partially written entry.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/dmm/internal/library"
	"github.com/desertthunder/dmm/internal/shared"
)

// ManifestName is the per-playlist manifest database file name.
const ManifestName = "index.db"

// Entry is one committed cache record.
type Entry struct {
	Key       library.FetchKey
	File      string // absolute path to the audio file
	Bytes     int64
	FetchedAt time.Time
}

// Store is the cache for a single playlist.
type Store struct {
	dir string
	db  *sql.DB
}

// Open opens (creating if needed) the cache subdirectory and manifest
// for the given playlist slug.
func Open(cacheRoot, slug string) (*Store, error) {
	dir := filepath.Join(cacheRoot, slug)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create cache dir: %v", shared.ErrCacheIO, err)
	}

	db, err := shared.NewDatabase(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}

	if err := ensureManifest(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{dir: dir, db: db}, nil
}

// ensureManifest creates the manifest schema if it doesn't exist.
func ensureManifest(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			file TEXT NOT NULL,
			bytes INTEGER NOT NULL,
			fetched_at TIMESTAMP NOT NULL
		)
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("%w: failed to create manifest schema: %v", shared.ErrCacheIO, err)
	}
	return nil
}

// Dir returns the playlist's cache directory.
func (s *Store) Dir() string { return s.dir }

// Close closes the manifest database.
func (s *Store) Close() error { return s.db.Close() }

// Has reports whether a committed entry exists for key.
func (s *Store) Has(key library.FetchKey) (bool, error) {
	var exists bool
	err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM entries WHERE key = ?)", key.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}
	return exists, nil
}

// PathFor returns the audio file path for key, or ErrTrackNotCached.
func (s *Store) PathFor(key library.FetchKey) (string, error) {
	var file string
	err := s.db.QueryRow("SELECT file FROM entries WHERE key = ?", key.String()).Scan(&file)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", shared.ErrTrackNotCached, key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}
	return filepath.Join(s.dir, file), nil
}

// List returns every committed entry.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT key, file, bytes, fetched_at FROM entries ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var key, file string
		var bytes int64
		var fetchedAt time.Time
		if err := rows.Scan(&key, &file, &bytes, &fetchedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
		}
		entries = append(entries, Entry{
			Key:       library.FetchKey(key),
			File:      filepath.Join(s.dir, file),
			Bytes:     bytes,
			FetchedAt: fetchedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}
	return entries, nil
}

// Remove deletes the entry for key, returning the bytes freed.
//
// A manifest row without a backing file is still removed and reported
// as freed-zero rather than failing; unrelated keys may be removed
// concurrently.
func (s *Store) Remove(key library.FetchKey) (int64, error) {
	var file string
	var bytes int64
	err := s.db.QueryRow("SELECT file, bytes FROM entries WHERE key = ?", key.String()).Scan(&file, &bytes)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}

	if _, err := s.db.Exec("DELETE FROM entries WHERE key = ?", key.String()); err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}

	if err := os.Remove(filepath.Join(s.dir, file)); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}
	return bytes, nil
}

// WriteHandle stages one entry's audio bytes. Commit publishes the
// entry; Discard (safe to defer unconditionally) drops the staging
// file if Commit never ran, so an abandoned write is never visible.
type WriteHandle struct {
	store     *Store
	key       library.FetchKey
	finalName string
	tmpPath   string
	file      *os.File
	committed bool
}

// BeginWrite opens a staging file for key. The final file name is
// derived from the key and the source's declared format.
func (s *Store) BeginWrite(key library.FetchKey, format string) (*WriteHandle, error) {
	tmpPath := filepath.Join(s.dir, shared.GenerateID()+".part")
	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create staging file: %v", shared.ErrCacheIO, err)
	}

	finalName := key.String()
	if format != "" {
		finalName += "." + format
	}

	return &WriteHandle{
		store:     s,
		key:       key,
		finalName: finalName,
		tmpPath:   tmpPath,
		file:      file,
	}, nil
}

// Path returns the staging file path, for sources that write the
// output file themselves.
func (h *WriteHandle) Path() string { return h.tmpPath }

// Write appends audio bytes to the staging file.
func (h *WriteHandle) Write(p []byte) (int, error) {
	return h.file.Write(p)
}

// Commit publishes the staged bytes as the entry for the handle's key.
// Zero-length output is rejected.
func (h *WriteHandle) Commit() (Entry, error) {
	if err := h.file.Close(); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}

	info, err := os.Stat(h.tmpPath)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}
	if info.Size() == 0 {
		return Entry{}, fmt.Errorf("%w: fetch produced no output", shared.ErrFetchFailed)
	}

	finalPath := filepath.Join(h.store.dir, h.finalName)
	if err := os.Rename(h.tmpPath, finalPath); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}

	fetchedAt := time.Now().UTC()
	_, err = h.store.db.Exec(
		"INSERT OR REPLACE INTO entries (key, file, bytes, fetched_at) VALUES (?, ?, ?, ?)",
		h.key.String(), h.finalName, info.Size(), fetchedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}

	h.committed = true
	return Entry{
		Key:       h.key,
		File:      finalPath,
		Bytes:     info.Size(),
		FetchedAt: fetchedAt,
	}, nil
}

// Discard removes the staging file unless Commit already ran.
func (h *WriteHandle) Discard() {
	if h.committed {
		return
	}
	h.file.Close()
	os.Remove(h.tmpPath)
}

// Subdirs lists the playlist slugs present under the cache root.
func Subdirs(cacheRoot string) ([]string, error) {
	entries, err := os.ReadDir(cacheRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
	}

	var slugs []string
	for _, entry := range entries {
		if entry.IsDir() {
			slugs = append(slugs, entry.Name())
		}
	}
	return slugs, nil
}
