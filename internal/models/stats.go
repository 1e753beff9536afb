package models

import "time"

// Summary is the headline block of the dashboard.
type Summary struct {
	TimeRange     string     `json:"time_range"`
	TotalArtists  int        `json:"total_artists"`
	TopTracks     int        `json:"top_tracks"`
	Plays         int        `json:"plays"`
	TopGenre      *string    `json:"top_genre,omitempty"`
	LastExtracted *time.Time `json:"last_extracted,omitempty"`
	From          time.Time  `json:"from"`
	To            time.Time  `json:"to"`
}

// TopTrackRow is a top-track snapshot joined with its artist's name.
type TopTrackRow struct {
	Rank        int       `json:"rank"`
	TrackID     string    `json:"track_id"`
	Name        string    `json:"name"`
	ArtistID    string    `json:"artist_id"`
	ArtistName  string    `json:"artist_name"`
	AlbumName   string    `json:"album_name"`
	Popularity  int       `json:"popularity"`
	DurationMS  int       `json:"duration_ms"`
	Explicit    bool      `json:"explicit"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Duration returns the track length.
func (r TopTrackRow) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// TopArtistRow is a top-artist snapshot joined with the artist record.
type TopArtistRow struct {
	Rank        int       `json:"rank"`
	Artist      Artist    `json:"artist"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// GenreCount is how many stored artists carry a genre string.
type GenreCount struct {
	Genre   string `json:"genre"`
	Artists int    `json:"artists"`
}

// DailyPlays is the number of plays on one UTC day.
type DailyPlays struct {
	Day   time.Time `json:"day"`
	Plays int       `json:"plays"`
}
