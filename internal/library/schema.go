// package library defines the declarative record types of a music
// directory and the resolver that loads them.
//
// Playlists and sources are TOML documents under playlists/ and
// sources/. A playlist's tracks reference sources by name; the
// resolver merges imported and inline sources and rejects unresolved
// references before any other component sees the playlist.
package library

import (
	"fmt"
	"strings"

	"github.com/desertthunder/dmm/internal/shared"
)

// Meta holds a track's display metadata. Never part of cache identity.
type Meta struct {
	Name   string `toml:"name"`
	Artist string `toml:"artist"`
}

// Track is a single entry of a playlist: display metadata, the name of
// the source that fetches it, and the input handed to that source.
type Track struct {
	Meta  Meta   `toml:"meta"`
	Src   string `toml:"src"`
	Input string `toml:"input"`
}

// ShellSource invokes an external command. Args may reference
// ${input} and ${output}; both are substituted at fetch time.
type ShellSource struct {
	Cmd  string   `toml:"cmd"`
	Args []string `toml:"args"`
}

// SourceKind is the closed set of ways to obtain a track's audio.
// Exactly one field must be set; adding a kind means adding a field
// here and a branch to the fetch executor.
type SourceKind struct {
	Shell *ShellSource `toml:"shell"`
}

// Validate checks that exactly one kind variant is set.
func (k SourceKind) Validate() error {
	if k.Shell == nil {
		return fmt.Errorf("%w: source has no kind", shared.ErrInvalidConfig)
	}
	if k.Shell.Cmd == "" {
		return fmt.Errorf("%w: shell source has no cmd", shared.ErrInvalidConfig)
	}
	return nil
}

// Source describes how to obtain raw audio. Format is the audio file
// extension the source produces (mp3, flac, ...) and guides decoder
// selection. The name is display-only and excluded from cache identity.
type Source struct {
	Name   string     `toml:"name"`
	Format string     `toml:"format"`
	Kind   SourceKind `toml:"kind"`
}

// Playlist is a declared playlist: imported source names, inline
// sources, and tracks. Sources holds the merged (imported + inline)
// set after resolution.
type Playlist struct {
	Name    string   `toml:"name"`
	Import  []string `toml:"import"`
	Inline  []Source `toml:"sources"`
	Tracks  []Track  `toml:"tracks"`
	Sources []Source `toml:"-"`
}

// FindSource returns the resolved source with the given name.
func (p *Playlist) FindSource(name string) (*Source, error) {
	for i := range p.Sources {
		if p.Sources[i].Name == name {
			return &p.Sources[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q in playlist %q", shared.ErrSourceNotFound, name, p.Name)
}

// Slug returns the playlist's cache subdirectory name.
func (p *Playlist) Slug() string {
	s := strings.ToLower(p.Name)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
	return strings.Trim(s, "_")
}
