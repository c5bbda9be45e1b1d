package player

import (
	"math/rand"

	"github.com/desertthunder/dmm/internal/library"
)

// TransportState enumerates the playback transport's states.
type TransportState int

const (
	Stopped TransportState = iota
	Loading
	Playing
	Paused
	Seeking
	Finished
)

func (s TransportState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Seeking:
		return "seeking"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// RepeatMode enumerates the repeat behaviors of a session.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatSingle
	RepeatAll
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatSingle:
		return "single"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// Session is the transport state machine for one playlist. It is not
// safe for concurrent use; the engine's control loop is its single
// owner and applies commands serially.
type Session struct {
	playlist *library.Playlist
	index    int
	state    TransportState
	shuffle  bool
	repeat   RepeatMode
	played   map[int]bool
	rng      *rand.Rand
}

// NewSession creates a stopped session over the given playlist.
func NewSession(pl *library.Playlist, seed int64) *Session {
	return &Session{
		playlist: pl,
		state:    Stopped,
		played:   map[int]bool{},
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (s *Session) State() TransportState { return s.state }
func (s *Session) TrackIndex() int       { return s.index }
func (s *Session) TrackCount() int       { return len(s.playlist.Tracks) }
func (s *Session) Shuffle() bool         { return s.shuffle }
func (s *Session) Repeat() RepeatMode    { return s.repeat }

// Track returns the current track, or nil for an empty playlist.
func (s *Session) Track() *library.Track {
	if s.index < 0 || s.index >= len(s.playlist.Tracks) {
		return nil
	}
	return &s.playlist.Tracks[s.index]
}

// Load moves the transport to Loading for the given track index. It
// reports false for an out-of-range index.
func (s *Session) Load(index int) bool {
	if index < 0 || index >= len(s.playlist.Tracks) {
		return false
	}
	s.index = index
	s.state = Loading
	s.played[index] = true
	return true
}

// Ready completes a Loading or Seeking transition into Playing.
func (s *Session) Ready() {
	if s.state == Loading || s.state == Seeking {
		s.state = Playing
	}
}

// Pause suspends playback. Pausing any non-playing state is a no-op.
func (s *Session) Pause() {
	if s.state == Playing {
		s.state = Paused
	}
}

// Resume continues paused playback.
func (s *Session) Resume() {
	if s.state == Paused {
		s.state = Playing
	}
}

// TogglePause flips between Playing and Paused.
func (s *Session) TogglePause() {
	switch s.state {
	case Playing:
		s.state = Paused
	case Paused:
		s.state = Playing
	}
}

// BeginSeek marks a repositioning in progress.
func (s *Session) BeginSeek() {
	if s.state == Playing || s.state == Paused {
		s.state = Seeking
	}
}

// Finish marks the current track exhausted.
func (s *Session) Finish() {
	s.state = Finished
}

// Stop returns the transport to its terminal state.
func (s *Session) Stop() {
	s.state = Stopped
	s.played = map[int]bool{}
}

func (s *Session) SetShuffle(on bool) { s.shuffle = on }

func (s *Session) SetRepeat(mode RepeatMode) { s.repeat = mode }

// Advance picks the next track after the current one finishes. It
// reports false when the session should stop instead.
//
// Repeat single reloads the current track. Shuffle prefers unplayed
// tracks and never repeats the track that just finished when another
// exists. Otherwise playback is sequential, wrapping only under
// repeat all.
func (s *Session) Advance() (int, bool) {
	count := len(s.playlist.Tracks)
	if count == 0 {
		return 0, false
	}

	if s.repeat == RepeatSingle {
		return s.index, true
	}

	if s.shuffle {
		return s.advanceShuffle(count)
	}

	next := s.index + 1
	if next < count {
		return next, true
	}
	if s.repeat == RepeatAll {
		return 0, true
	}
	return 0, false
}

func (s *Session) advanceShuffle(count int) (int, bool) {
	var unplayed []int
	for i := 0; i < count; i++ {
		if !s.played[i] {
			unplayed = append(unplayed, i)
		}
	}
	if len(unplayed) > 0 {
		return unplayed[s.rng.Intn(len(unplayed))], true
	}

	// everything played; start a fresh pass
	s.played = map[int]bool{}
	next := s.rng.Intn(count)
	for count > 1 && next == s.index {
		next = s.rng.Intn(count)
	}
	return next, true
}

// Previous returns the index preceding the current track, wrapping to
// the end of the playlist.
func (s *Session) Previous() int {
	count := len(s.playlist.Tracks)
	if count == 0 {
		return 0
	}
	return (s.index - 1 + count) % count
}
