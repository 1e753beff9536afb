// package models defines the data model for the listening pipeline
package models

import (
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/spotstats/internal/shared"
)

// Load groups, in the order the loader commits them.
const (
	GroupArtists          = "artists"
	GroupTopTracks        = "top_tracks"
	GroupTopArtists       = "top_artists"
	GroupListeningHistory = "listening_history"
)

// Groups lists the load groups in commit order.
var Groups = []string{GroupArtists, GroupTopTracks, GroupTopArtists, GroupListeningHistory}

// Validator is implemented by every record the loader writes.
type Validator interface {
	Validate() error // Validate checks the record before it is persisted
}

// Artist is the merged view of one Spotify artist.
//
// Nil fields are unknown. The store never replaces a known value with an unknown one.
type Artist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Genre      *string   `json:"genre,omitempty"`
	Popularity *int      `json:"popularity,omitempty"`
	Followers  *int      `json:"followers,omitempty"`
	SpotifyURL *string   `json:"spotify_url,omitempty"`
	ImageURL   *string   `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

func (a Artist) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: artist id is empty", shared.ErrInvalidInput)
	}
	if a.Name == "" {
		return fmt.Errorf("%w: artist %s has no name", shared.ErrInvalidInput, a.ID)
	}
	if a.Popularity != nil && (*a.Popularity < 0 || *a.Popularity > 100) {
		return fmt.Errorf("%w: artist %s popularity %d out of range", shared.ErrInvalidInput, a.ID, *a.Popularity)
	}
	return nil
}

// TopTrackSnapshot is one ranked entry of the user's top tracks at extraction time.
type TopTrackSnapshot struct {
	TrackID     string    `json:"track_id"`
	Name        string    `json:"name"`
	ArtistID    string    `json:"artist_id"`
	AlbumName   string    `json:"album_name"`
	AlbumID     string    `json:"album_id"`
	Popularity  int       `json:"popularity"`
	DurationMS  int       `json:"duration_ms"`
	Explicit    bool      `json:"explicit"`
	ExtractedAt time.Time `json:"extracted_at"`
	TimeRange   string    `json:"time_range"`
	Rank        int       `json:"rank"`
}

func (t TopTrackSnapshot) Validate() error {
	if t.TrackID == "" || t.ArtistID == "" {
		return fmt.Errorf("%w: top track %q is missing ids", shared.ErrInvalidInput, t.Name)
	}
	if t.Rank < 1 {
		return fmt.Errorf("%w: top track %s has rank %d", shared.ErrInvalidInput, t.TrackID, t.Rank)
	}
	return validateWindow(t.TimeRange)
}

// TopArtistSnapshot is one ranked entry of the user's top artists at extraction time.
type TopArtistSnapshot struct {
	ArtistID    string    `json:"artist_id"`
	ExtractedAt time.Time `json:"extracted_at"`
	TimeRange   string    `json:"time_range"`
	Rank        int       `json:"rank"`
}

func (t TopArtistSnapshot) Validate() error {
	if t.ArtistID == "" {
		return fmt.Errorf("%w: top artist is missing an id", shared.ErrInvalidInput)
	}
	if t.Rank < 1 {
		return fmt.Errorf("%w: top artist %s has rank %d", shared.ErrInvalidInput, t.ArtistID, t.Rank)
	}
	return validateWindow(t.TimeRange)
}

// ListeningHistoryEvent is a single play. Artist fields are copied, not referenced.
type ListeningHistoryEvent struct {
	TrackID     string    `json:"track_id"`
	TrackName   string    `json:"track_name"`
	ArtistID    string    `json:"artist_id"`
	ArtistName  string    `json:"artist_name"`
	PlayedAt    time.Time `json:"played_at"`
	Context     *string   `json:"context,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

func (e ListeningHistoryEvent) Validate() error {
	if e.TrackID == "" {
		return fmt.Errorf("%w: play of %q has no track id", shared.ErrInvalidInput, e.TrackName)
	}
	if e.PlayedAt.IsZero() {
		return fmt.Errorf("%w: play of %s has no played_at", shared.ErrInvalidInput, e.TrackID)
	}
	return nil
}

// TransformedBatch is the output of one transform, ready for loading.
type TransformedBatch struct {
	Artists          []Artist                `json:"artists"`
	TopTracks        []TopTrackSnapshot      `json:"top_tracks"`
	TopArtists       []TopArtistSnapshot     `json:"top_artists"`
	ListeningHistory []ListeningHistoryEvent `json:"listening_history"`
	ExtractedAt      time.Time               `json:"extracted_at"`
}

// Validate checks every record, that artist ids are unique, and that ranks
// within each time window run 1..n without gaps.
func (b *TransformedBatch) Validate() error {
	seen := make(map[string]bool, len(b.Artists))
	for _, a := range b.Artists {
		if err := a.Validate(); err != nil {
			return err
		}
		if seen[a.ID] {
			return fmt.Errorf("%w: artist %s appears twice", shared.ErrInvalidInput, a.ID)
		}
		seen[a.ID] = true
	}

	trackRanks := make(map[string][]int)
	for _, t := range b.TopTracks {
		if err := t.Validate(); err != nil {
			return err
		}
		trackRanks[t.TimeRange] = append(trackRanks[t.TimeRange], t.Rank)
	}
	artistRanks := make(map[string][]int)
	for _, t := range b.TopArtists {
		if err := t.Validate(); err != nil {
			return err
		}
		artistRanks[t.TimeRange] = append(artistRanks[t.TimeRange], t.Rank)
	}
	for _, e := range b.ListeningHistory {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	if err := contiguous(GroupTopTracks, trackRanks); err != nil {
		return err
	}
	return contiguous(GroupTopArtists, artistRanks)
}

// Counts returns the number of records per load group.
func (b *TransformedBatch) Counts() map[string]int {
	return map[string]int{
		GroupArtists:          len(b.Artists),
		GroupTopTracks:        len(b.TopTracks),
		GroupTopArtists:       len(b.TopArtists),
		GroupListeningHistory: len(b.ListeningHistory),
	}
}

// LoadResult reports what a load committed.
type LoadResult struct {
	Artists          int      `json:"artists"`
	TopTracks        int      `json:"top_tracks"`
	TopArtists       int      `json:"top_artists"`
	ListeningHistory int      `json:"listening_history"`
	Committed        []string `json:"committed"`
}

// Add records n rows committed for group.
func (r *LoadResult) Add(group string, n int) {
	switch group {
	case GroupArtists:
		r.Artists = n
	case GroupTopTracks:
		r.TopTracks = n
	case GroupTopArtists:
		r.TopArtists = n
	case GroupListeningHistory:
		r.ListeningHistory = n
	}
	r.Committed = append(r.Committed, group)
}

// Total is the number of rows written across all groups.
func (r *LoadResult) Total() int {
	return r.Artists + r.TopTracks + r.TopArtists + r.ListeningHistory
}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is the audit record of one pipeline execution.
type Run struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	TimeRange  string     `json:"time_range"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Result     LoadResult `json:"result"`
	Error      *string    `json:"error,omitempty"`
}

func (r Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: run id is empty", shared.ErrInvalidInput)
	}
	switch r.Status {
	case RunRunning, RunSucceeded, RunFailed:
	default:
		return fmt.Errorf("%w: run status %q", shared.ErrInvalidInput, r.Status)
	}
	return nil
}

// Duration is how long the run took, or zero while it is still running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func validateWindow(w string) error {
	if !slices.Contains(shared.TimeWindows, w) {
		return fmt.Errorf("%w: unknown time range %q", shared.ErrInvalidInput, w)
	}
	return nil
}

func contiguous(group string, ranks map[string][]int) error {
	for window, rs := range ranks {
		sorted := slices.Clone(rs)
		slices.Sort(sorted)
		for i, r := range sorted {
			if r != i+1 {
				return fmt.Errorf("%w: %s ranks for %s are not contiguous", shared.ErrInvalidInput, group, window)
			}
		}
	}
	return nil
}
