package player

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dmm/internal/cache"
	"github.com/desertthunder/dmm/internal/library"
	"github.com/desertthunder/dmm/internal/shared"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

const (
	outputSampleRate = beep.SampleRate(44100)
	decodeChunk      = 512
	statusInterval   = 200 * time.Millisecond
)

// CommandKind enumerates the operations a running engine accepts.
type CommandKind int

const (
	CmdPlay CommandKind = iota
	CmdPause
	CmdTogglePause
	CmdStop
	CmdNext
	CmdPrevious
	CmdSeek
	CmdSetShuffle
	CmdSetRepeat
	CmdSetVolume
	CmdQuit
)

// Command is one transport instruction. Offset, On, Mode and Level are
// read only by the command kinds that need them.
type Command struct {
	Kind   CommandKind
	Offset time.Duration
	On     bool
	Mode   RepeatMode
	Level  float64
}

// Status is a snapshot of the transport for the presentation layer.
type Status struct {
	State      TransportState
	TrackIndex int
	TrackCount int
	Position   time.Duration
	Duration   time.Duration
	Shuffle    bool
	Repeat     RepeatMode
	Volume     float64
	Track      library.Meta
}

// decodeResult reports how one track's decode goroutine ended. A nil
// err with finished=false means the decode was cancelled.
type decodeResult struct {
	finished bool
	err      error
}

// Engine owns one playback session: the transport state machine, a
// decode goroutine producing PCM into a ring buffer, and the speaker
// stream draining it. Commands arrive on a channel and are applied
// serially by the control loop; status snapshots are published on a
// second channel with latest-wins semantics.
type Engine struct {
	lib      *library.Library
	playlist *library.Playlist
	store    *cache.Store
	session  *Session
	logger   *log.Logger

	rb     *RingBuffer
	volume *effects.Volume
	level  float64
	paused atomic.Bool

	commands chan Command
	status   chan Status

	decodeCancel context.CancelFunc
	decodeDone   chan decodeResult
	seekCh       chan time.Duration

	framesPlayed atomic.Int64
	trackLength  atomic.Int64
	skips        int

	// draining is set when a track decoded to completion; the advance
	// is deferred until the speaker has consumed the buffered tail
	draining bool
}

// NewEngine creates an engine for one playlist. The playlist's cache
// store is opened immediately so a missing cache surfaces before any
// audio device work.
func NewEngine(lib *library.Library, pl *library.Playlist, logger *log.Logger) (*Engine, error) {
	store, err := cache.Open(lib.Dirs.Cache, pl.Slug())
	if err != nil {
		return nil, err
	}

	level := lib.Config.Player.Volume
	if level < 0 {
		level = 0
	}

	bufferFrames := outputSampleRate.N(time.Duration(lib.Config.Player.BufferMs) * time.Millisecond)
	if bufferFrames < decodeChunk {
		bufferFrames = decodeChunk
	}

	return &Engine{
		lib:      lib,
		playlist: pl,
		store:    store,
		session:  NewSession(pl, time.Now().UnixNano()),
		logger:   logger,
		rb:       NewRingBuffer(bufferFrames),
		level:    level,
		commands: make(chan Command, 16),
		status:   make(chan Status, 1),
		seekCh:   make(chan time.Duration, 1),
	}, nil
}

// Commands returns the channel the engine consumes instructions from.
func (e *Engine) Commands() chan<- Command { return e.commands }

// Status returns the snapshot channel. Only the latest snapshot is
// retained; slow readers never block the engine.
func (e *Engine) Status() <-chan Status { return e.status }

// Run initializes the output device and drives the session until the
// context is cancelled or a quit command arrives. Device failures are
// fatal; decode failures skip the affected track.
func (e *Engine) Run(ctx context.Context) error {
	// closing the snapshot channel tells the presentation layer the
	// session is over, including early device failures
	defer close(e.status)

	if err := speaker.Init(outputSampleRate, outputSampleRate.N(time.Duration(e.lib.Config.Player.BufferMs)*time.Millisecond)); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAudioDevice, err)
	}
	defer speaker.Close()
	defer e.store.Close()
	defer e.rb.Close()

	e.volume = &effects.Volume{
		Streamer: &drainStreamer{engine: e},
		Base:     2,
		Volume:   volumeGain(e.level),
		Silent:   e.level == 0,
	}
	speaker.Play(e.volume)

	if e.lib.Config.PlayOnStart && len(e.playlist.Tracks) > 0 {
		e.startTrack(0)
	}

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	e.publish()

	for {
		select {
		case <-ctx.Done():
			e.stopDecode()
			return ctx.Err()
		case result := <-e.decodeDone:
			e.decodeDone = nil
			e.onDecodeEnd(result)
		case cmd := <-e.commands:
			if quit := e.apply(cmd); quit {
				e.stopDecode()
				return nil
			}
		case <-ticker.C:
			e.maybeAdvance()
		}
		e.publish()
	}
}

func (e *Engine) apply(cmd Command) (quit bool) {
	switch cmd.Kind {
	case CmdPlay:
		switch e.session.State() {
		case Stopped:
			if len(e.playlist.Tracks) > 0 {
				e.startTrack(0)
			}
		case Paused:
			e.session.Resume()
			e.paused.Store(false)
		}
	case CmdPause:
		e.session.Pause()
		e.paused.Store(e.session.State() == Paused)
	case CmdTogglePause:
		e.session.TogglePause()
		e.paused.Store(e.session.State() == Paused)
	case CmdStop:
		e.stopDecode()
		e.draining = false
		e.session.Stop()
		e.rb.Flush()
	case CmdNext:
		if e.session.State() == Stopped {
			break
		}
		e.session.Finish()
		if next, ok := e.session.Advance(); ok {
			e.startTrack(next)
		} else {
			e.stopDecode()
			e.draining = false
			e.session.Stop()
			e.rb.Flush()
		}
	case CmdPrevious:
		if e.session.State() != Stopped {
			e.startTrack(e.session.Previous())
		}
	case CmdSeek:
		e.seek(cmd.Offset)
	case CmdSetShuffle:
		e.session.SetShuffle(cmd.On)
	case CmdSetRepeat:
		e.session.SetRepeat(cmd.Mode)
	case CmdSetVolume:
		e.setVolume(cmd.Level)
	case CmdQuit:
		return true
	}
	return false
}

// startTrack replaces any running decode goroutine with one for the
// given track index.
func (e *Engine) startTrack(index int) {
	e.stopDecode()
	e.rb.Flush()
	e.draining = false
	e.framesPlayed.Store(0)
	e.trackLength.Store(0)

	// a seek aimed at the previous track must not reposition this one
	select {
	case <-e.seekCh:
	default:
	}

	if !e.session.Load(index) {
		e.session.Stop()
		return
	}

	track := e.session.Track()
	src, err := e.playlist.FindSource(track.Src)
	if err != nil {
		e.skipTrack(err)
		return
	}
	path, err := e.store.PathFor(library.KeyFor(src, track.Input))
	if err != nil {
		e.skipTrack(err)
		return
	}

	e.logger.Info("now playing", "track", track.Meta.Name, "artist", track.Meta.Artist)

	ctx, cancel := context.WithCancel(context.Background())
	e.decodeCancel = cancel
	done := make(chan decodeResult, 1)
	e.decodeDone = done
	go e.decodeTrack(ctx, path, src.Format, done)

	e.session.Ready()
	e.paused.Store(false)
}

// stopDecode cancels the running decode goroutine, if any, and waits
// for it to exit.
func (e *Engine) stopDecode() {
	if e.decodeCancel == nil {
		return
	}
	e.decodeCancel()
	e.rb.Flush()
	if e.decodeDone != nil {
		<-e.decodeDone
	}
	e.decodeCancel = nil
	e.decodeDone = nil
}

// onDecodeEnd applies the advance policy after a track's decode
// goroutine exits on its own.
func (e *Engine) onDecodeEnd(result decodeResult) {
	if e.decodeCancel != nil {
		e.decodeCancel()
		e.decodeCancel = nil
	}

	if result.err != nil {
		e.skipTrack(result.err)
		return
	}
	if !result.finished {
		return
	}

	e.skips = 0
	e.draining = true
	e.maybeAdvance()
}

// maybeAdvance applies the advance policy once a finished track's
// buffered tail has fully drained. Flushing earlier would clip the
// last buffered frames of every track.
func (e *Engine) maybeAdvance() {
	if !e.draining || e.rb.Len() > 0 {
		return
	}
	e.draining = false

	e.session.Finish()
	if next, ok := e.session.Advance(); ok {
		e.startTrack(next)
		return
	}
	e.session.Stop()
	e.rb.Flush()
}

// skipTrack logs a track-level failure and moves on per the advance
// policy. Only device failures end the session. A full pass of
// consecutive failures stops the session instead of cycling forever
// under repeat or shuffle.
func (e *Engine) skipTrack(err error) {
	track := e.session.Track()
	if track != nil {
		e.logger.Warn("skipping track", "track", track.Meta.Name, "err", err)
	}

	e.skips++
	e.session.Finish()
	next, ok := e.session.Advance()
	if ok && e.session.Repeat() != RepeatSingle && e.skips < e.session.TrackCount() {
		e.startTrack(next)
		return
	}
	e.session.Stop()
	e.rb.Flush()
}

func (e *Engine) seek(offset time.Duration) {
	if e.decodeDone == nil {
		return
	}
	if offset < 0 {
		offset = 0
	}
	wasPaused := e.session.State() == Paused
	e.session.BeginSeek()
	e.rb.Flush()
	select {
	case e.seekCh <- offset:
	default:
		// an unconsumed seek is superseded by this one
		select {
		case <-e.seekCh:
		default:
		}
		e.seekCh <- offset
	}
	e.session.Ready()
	if wasPaused {
		e.session.Pause()
	}
}

func (e *Engine) setVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 2 {
		level = 2
	}
	e.level = level
	speaker.Lock()
	e.volume.Volume = volumeGain(level)
	e.volume.Silent = level == 0
	speaker.Unlock()
}

// volumeGain maps a linear 0..2 level onto the exponential gain that
// effects.Volume expects.
func volumeGain(level float64) float64 {
	if level <= 0 {
		return 0
	}
	return math.Log2(level)
}

func (e *Engine) publish() {
	var meta library.Meta
	if track := e.session.Track(); track != nil {
		meta = track.Meta
	}

	st := Status{
		State:      e.session.State(),
		TrackIndex: e.session.TrackIndex(),
		TrackCount: e.session.TrackCount(),
		Position:   outputSampleRate.D(int(e.framesPlayed.Load())),
		Duration:   outputSampleRate.D(int(e.trackLength.Load())),
		Shuffle:    e.session.Shuffle(),
		Repeat:     e.session.Repeat(),
		Volume:     e.level,
		Track:      meta,
	}

	select {
	case e.status <- st:
	default:
		// drop the stale snapshot and retry once
		select {
		case <-e.status:
		default:
		}
		select {
		case e.status <- st:
		default:
		}
	}
}

// decodeTrack reads one cached file, resamples it to the output rate
// and produces frames into the ring buffer until the track ends, a
// seek repositions it, or the context cancels it.
func (e *Engine) decodeTrack(ctx context.Context, path, format string, done chan<- decodeResult) {
	file, err := os.Open(path)
	if err != nil {
		done <- decodeResult{err: fmt.Errorf("%w: %v", shared.ErrDecodeFailed, err)}
		return
	}
	defer file.Close()

	streamer, fileFormat, err := decode(file, format, path)
	if err != nil {
		done <- decodeResult{err: err}
		return
	}
	defer streamer.Close()

	e.trackLength.Store(int64(resampledLength(streamer.Len(), fileFormat.SampleRate)))

	var source beep.Streamer = streamer
	if fileFormat.SampleRate != outputSampleRate {
		source = beep.Resample(4, fileFormat.SampleRate, outputSampleRate, streamer)
	}

	scratch := make([][2]float64, decodeChunk)
	for {
		select {
		case <-ctx.Done():
			done <- decodeResult{}
			return
		case target := <-e.seekCh:
			sample := fileFormat.SampleRate.N(target)
			if sample > streamer.Len() {
				sample = streamer.Len()
			}
			if err := streamer.Seek(sample); err != nil {
				done <- decodeResult{err: fmt.Errorf("%w: seek: %v", shared.ErrDecodeFailed, err)}
				return
			}
			e.framesPlayed.Store(int64(outputSampleRate.N(target)))
		default:
		}

		n, ok := source.Stream(scratch)
		if n > 0 {
			if written := e.rb.Write(scratch[:n]); written < n {
				done <- decodeResult{}
				return
			}
		}
		if !ok {
			if err := streamer.Err(); err != nil {
				done <- decodeResult{err: fmt.Errorf("%w: %v", shared.ErrDecodeFailed, err)}
				return
			}
			done <- decodeResult{finished: true}
			return
		}
	}
}

// resampledLength converts a sample count at the file's rate into the
// equivalent count at the output rate.
func resampledLength(samples int, from beep.SampleRate) int {
	return outputSampleRate.N(from.D(samples))
}

// decode picks a decoder from the source's declared format, falling
// back to the cached file's extension.
func decode(file *os.File, format, path string) (beep.StreamSeekCloser, beep.Format, error) {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}

	var (
		streamer beep.StreamSeekCloser
		f        beep.Format
		err      error
	)
	switch strings.ToLower(format) {
	case "mp3":
		streamer, f, err = mp3.Decode(file)
	case "wav":
		streamer, f, err = wav.Decode(file)
	case "flac":
		streamer, f, err = flac.Decode(file)
	case "ogg", "oga", "vorbis":
		streamer, f, err = vorbis.Decode(file)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: unsupported format %q", shared.ErrDecodeFailed, format)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %v", shared.ErrDecodeFailed, err)
	}
	return streamer, f, nil
}

// drainStreamer adapts the ring buffer to beep's streamer interface.
// Reads are non-blocking so an empty buffer outputs silence instead of
// stalling the speaker; while the transport is paused it emits silence
// without consuming frames.
type drainStreamer struct {
	engine *Engine
}

func (d *drainStreamer) Stream(samples [][2]float64) (int, bool) {
	if d.engine.paused.Load() {
		for i := range samples {
			samples[i] = [2]float64{}
		}
		return len(samples), true
	}

	n := d.engine.rb.Read(samples)
	d.engine.framesPlayed.Add(int64(n))
	return len(samples), true
}

func (d *drainStreamer) Err() error { return nil }
