package tasks

import (
	"fmt"

	"github.com/desertthunder/dmm/internal/library"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	PlanFetches Phase = iota
	FetchTrack
	SkipTrack
	CommitTrack
	FailTrack
	ScanCache
	SweepCache
)

func (p Phase) String() string {
	switch p {
	case PlanFetches:
		return "plan_fetches"
	case FetchTrack:
		return "fetch_track"
	case SkipTrack:
		return "skip_track"
	case CommitTrack:
		return "commit_track"
	case FailTrack:
		return "fail_track"
	case ScanCache:
		return "scan_cache"
	case SweepCache:
		return "sweep_cache"
	default:
		return ""
	}
}

func planUpdate(playlist string, toFetch, skipped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PlanFetches,
		Step:    0,
		Total:   toFetch,
		Message: fmt.Sprintf("%s: %d to fetch, %d already cached", playlist, toFetch, skipped),
	}
}

func skipUpdate(track *library.Track, key library.FetchKey) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SkipTrack,
		Message: fmt.Sprintf("cached: %s - %s", track.Meta.Artist, track.Meta.Name),
		Data:    key,
	}
}

func fetchUpdate(step, total int, track *library.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, track.Meta.Artist, track.Meta.Name),
	}
}

func commitUpdate(step, total int, track *library.Track, bytes int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CommitTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d bytes)", step, total, track.Meta.Name, bytes),
	}
}

func failUpdate(step, total int, track *library.Track, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FailTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, track.Meta.Name, err),
	}
}

func scanUpdate(playlist string, live int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanCache,
		Message: fmt.Sprintf("%s: %d live keys", playlist, live),
	}
}

func sweepUpdate(slug string, key library.FetchKey, bytes int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SweepCache,
		Message: fmt.Sprintf("%s: removed %s (%d bytes)", slug, key, bytes),
	}
}
