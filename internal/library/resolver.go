package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/dmm/internal/shared"
)

// Directories lays out the subdirectories of a music directory.
type Directories struct {
	Root      string
	Run       string
	Sources   string
	Playlists string
	Cache     string
}

// DirectoriesFromRoot derives the standard layout from a root path.
func DirectoriesFromRoot(root string) Directories {
	return Directories{
		Root:      root,
		Run:       filepath.Join(root, "run"),
		Sources:   filepath.Join(root, "sources"),
		Playlists: filepath.Join(root, "playlists"),
		Cache:     filepath.Join(root, "cache"),
	}
}

// Create makes every subdirectory that does not yet exist.
func (d Directories) Create() error {
	for _, dir := range []string{d.Root, d.Run, d.Sources, d.Playlists, d.Cache} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// RunFile returns a path inside the run directory, which holds
// runtime state excluded from version control.
func (d Directories) RunFile(name string) string {
	return filepath.Join(d.Run, name)
}

// Library is the fully resolved contents of a music directory.
type Library struct {
	Config    *shared.Config
	Dirs      Directories
	Sources   []Source
	Playlists []Playlist
}

// PlaylistNames returns the declared playlist names in load order.
func (l *Library) PlaylistNames() []string {
	names := make([]string, len(l.Playlists))
	for i := range l.Playlists {
		names[i] = l.Playlists[i].Name
	}
	return names
}

// FindPlaylist returns the playlist with the exact given name.
func (l *Library) FindPlaylist(name string) (*Playlist, error) {
	for i := range l.Playlists {
		if l.Playlists[i].Name == name {
			return &l.Playlists[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, name)
}

// Resolve loads a music directory: config, shared sources, and
// playlists with their source references resolved.
//
// Every track's src must name a source visible to its playlist
// (imported or inline); a dangling reference fails resolution so the
// rest of the system never sees it.
func Resolve(root string) (*Library, error) {
	dirs := DirectoriesFromRoot(root)

	if _, err := os.Stat(dirs.Playlists); err != nil {
		return nil, fmt.Errorf("%w: %s has no playlists directory", shared.ErrNoMusicDir, root)
	}

	config := shared.DefaultConfig()
	configPath := filepath.Join(root, shared.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	lib := &Library{Config: config, Dirs: dirs}

	sources, err := loadSources(dirs.Sources)
	if err != nil {
		return nil, err
	}
	lib.Sources = sources

	entries, err := os.ReadDir(dirs.Playlists)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlists directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		path := filepath.Join(dirs.Playlists, entry.Name())
		pl, err := loadPlaylist(path, sources)
		if err != nil {
			return nil, err
		}
		lib.Playlists = append(lib.Playlists, *pl)
	}

	return lib, nil
}

func loadSources(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sources directory: %w", err)
	}

	var sources []Source
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		var src Source
		if _, err := toml.DecodeFile(path, &src); err != nil {
			return nil, fmt.Errorf("%w: source %s: %v", shared.ErrInvalidConfig, path, err)
		}
		if err := src.Kind.Validate(); err != nil {
			return nil, fmt.Errorf("source %s: %w", path, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func loadPlaylist(path string, imported []Source) (*Playlist, error) {
	var pl Playlist
	if _, err := toml.DecodeFile(path, &pl); err != nil {
		return nil, fmt.Errorf("%w: playlist %s: %v", shared.ErrInvalidConfig, path, err)
	}

	pl.Sources = append(pl.Sources, pl.Inline...)
	for _, name := range pl.Import {
		found := false
		for i := range imported {
			if imported[i].Name == name {
				pl.Sources = append(pl.Sources, imported[i])
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: import %q in playlist %s", shared.ErrSourceNotFound, name, path)
		}
	}

	for i := range pl.Sources {
		if err := pl.Sources[i].Kind.Validate(); err != nil {
			return nil, fmt.Errorf("playlist %s: %w", path, err)
		}
	}

	for _, track := range pl.Tracks {
		if _, err := pl.FindSource(track.Src); err != nil {
			return nil, fmt.Errorf("playlist %s: track %q: %w", path, track.Meta.Name, err)
		}
	}

	return &pl, nil
}
