package tasks

import (
	"fmt"

	"github.com/desertthunder/spotstats/internal/models"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline phase
	Step    int    // Current step number within the run
	Total   int    // Total steps in the run
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Reporter receives progress updates. It is called on the pipeline's goroutine.
type Reporter func(ProgressUpdate)

func (r Reporter) send(u ProgressUpdate) {
	if r != nil {
		r(u)
	}
}

// Pipeline phase enumeration
type Phase int

const (
	FetchProfile Phase = iota
	FetchTopTracks
	FetchTopArtists
	FetchRecentlyPlayed
	FetchSavedTracks
	TransformBatch
	LoadBatch
	SearchArtist
)

func (p Phase) String() string {
	switch p {
	case FetchProfile:
		return "fetch_profile"
	case FetchTopTracks:
		return "fetch_top_tracks"
	case FetchTopArtists:
		return "fetch_top_artists"
	case FetchRecentlyPlayed:
		return "fetch_recently_played"
	case FetchSavedTracks:
		return "fetch_saved_tracks"
	case TransformBatch:
		return "transform"
	case LoadBatch:
		return "load"
	case SearchArtist:
		return "search_artist"
	default:
		return ""
	}
}

func fetchUpdate(phase Phase, step, total int, window string) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s", step, total, phase)
	if window != "" {
		msg = fmt.Sprintf("[%d/%d] %s (%s)", step, total, phase, window)
	}
	return ProgressUpdate{Phase: phase, Step: step, Total: total, Message: msg}
}

func transformedUpdate(batch *models.TransformedBatch) ProgressUpdate {
	return ProgressUpdate{
		Phase: TransformBatch,
		Message: fmt.Sprintf("Transformed %d artists, %d top tracks, %d top artists, %d plays",
			len(batch.Artists), len(batch.TopTracks), len(batch.TopArtists), len(batch.ListeningHistory)),
		Data: batch.Counts(),
	}
}

func loadedUpdate(res *models.LoadResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadBatch,
		Message: fmt.Sprintf("Loaded %d rows (%v)", res.Total(), res.Committed),
		Data:    res,
	}
}
