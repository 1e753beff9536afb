package services

import (
	"encoding/json"

	"github.com/desertthunder/spotstats/internal/shared"
)

// Image is one size variant of artwork.
type Image struct {
	URL    string `json:"url"`
	Height *int   `json:"height"`
	Width  *int   `json:"width"`
}

// ExternalURLs holds an object's public links.
type ExternalURLs struct {
	Spotify *string `json:"spotify,omitempty"`
}

// Followers holds follower information.
type Followers struct {
	Total *int `json:"total,omitempty"`
}

// Artist is either the simplified artist attached to tracks or the full artist object.
// Simplified artists carry no genres, popularity, followers or images.
type Artist struct {
	ID           *string       `json:"id,omitempty"`
	Name         *string       `json:"name,omitempty"`
	Genres       []string      `json:"genres,omitempty"`
	Popularity   *int          `json:"popularity,omitempty"`
	Followers    *Followers    `json:"followers,omitempty"`
	ExternalURLs *ExternalURLs `json:"external_urls,omitempty"`
	Images       []Image       `json:"images,omitempty"`
	URI          *string       `json:"uri,omitempty"`
}

// Album is the simplified album attached to a track.
type Album struct {
	ID          *string  `json:"id,omitempty"`
	Name        *string  `json:"name,omitempty"`
	ReleaseDate *string  `json:"release_date,omitempty"`
	Images      []Image  `json:"images,omitempty"`
	Artists     []Artist `json:"artists,omitempty"`
}

// Track is a full track object.
type Track struct {
	ID           *string       `json:"id,omitempty"`
	Name         *string       `json:"name,omitempty"`
	Artists      []Artist      `json:"artists,omitempty"`
	Album        *Album        `json:"album,omitempty"`
	Popularity   *int          `json:"popularity,omitempty"`
	DurationMS   *int          `json:"duration_ms,omitempty"`
	Explicit     *bool         `json:"explicit,omitempty"`
	ExternalURLs *ExternalURLs `json:"external_urls,omitempty"`
	URI          *string       `json:"uri,omitempty"`
}

// PlayContext is the playlist, album or artist a play started from.
type PlayContext struct {
	Type *string `json:"type,omitempty"`
	URI  *string `json:"uri,omitempty"`
}

// PlayHistory is one item of the recently-played feed.
type PlayHistory struct {
	Track    *Track       `json:"track,omitempty"`
	PlayedAt *string      `json:"played_at,omitempty"`
	Context  *PlayContext `json:"context,omitempty"`
}

// SavedTrack is one item of the user's library.
type SavedTrack struct {
	AddedAt *string `json:"added_at,omitempty"`
	Track   *Track  `json:"track,omitempty"`
}

// Profile is the current user's profile.
type Profile struct {
	ID          *string    `json:"id,omitempty"`
	DisplayName *string    `json:"display_name,omitempty"`
	Email       *string    `json:"email,omitempty"`
	Country     *string    `json:"country,omitempty"`
	Product     *string    `json:"product,omitempty"`
	Followers   *Followers `json:"followers,omitempty"`
}

// Page is a paging object. Items is nil when the key was absent.
type Page[T any] struct {
	Items  []T     `json:"items"`
	Total  *int    `json:"total,omitempty"`
	Limit  *int    `json:"limit,omitempty"`
	Offset *int    `json:"offset,omitempty"`
	Next   *string `json:"next,omitempty"`
}

// decodePage unmarshals body into a page and requires the items key.
func decodePage[T any](endpoint string, body json.RawMessage) (*Page[T], error) {
	var page Page[T]
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &shared.MalformedDataError{Path: endpoint, Reason: err.Error()}
	}
	if page.Items == nil {
		return nil, shared.Missing("%s.items", endpoint)
	}
	return &page, nil
}

// searchResult is the envelope of /search?type=artist.
type searchResult struct {
	Artists *Page[Artist] `json:"artists"`
}

func decodeArtistSearch(body json.RawMessage) (*Page[Artist], error) {
	var res searchResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &shared.MalformedDataError{Path: "/search", Reason: err.Error()}
	}
	if res.Artists == nil {
		return nil, shared.Missing("/search.artists")
	}
	if res.Artists.Items == nil {
		return nil, shared.Missing("/search.artists.items")
	}
	return res.Artists, nil
}

// String returns the artist's name for logging.
func (a Artist) String() string {
	switch {
	case a.Name != nil:
		return *a.Name
	case a.ID != nil:
		return *a.ID
	}
	return "unknown artist"
}
