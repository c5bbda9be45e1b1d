package shared

import "fmt"

var (
	// Configuration and directory errors
	ErrMissingConfig   = fmt.Errorf("configuration not found")
	ErrInvalidConfig   = fmt.Errorf("invalid configuration")
	ErrNoMusicDir      = fmt.Errorf("not a music directory")
	ErrMissingArgument = fmt.Errorf("missing required argument")

	// Playlist resolution errors
	ErrPlaylistNotFound  = fmt.Errorf("playlist not found")
	ErrAmbiguousPlaylist = fmt.Errorf("ambiguous playlist name")
	ErrSourceNotFound    = fmt.Errorf("source not found")
	ErrTrackNotCached    = fmt.Errorf("track not cached")

	// Fetch and cache errors
	ErrFetchFailed = fmt.Errorf("fetch failed")
	ErrCacheIO     = fmt.Errorf("cache I/O failed")

	// Playback errors
	ErrDecodeFailed = fmt.Errorf("decode failed")
	ErrAudioDevice  = fmt.Errorf("audio device unavailable")
)
