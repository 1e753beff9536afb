package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotstats/internal/services"
	"github.com/desertthunder/spotstats/internal/shared"
)

// RawSnapshot is everything one extraction pulled from the API.
//
// Top tracks and top artists keep one group per requested window, in request order.
type RawSnapshot struct {
	Profile        *services.Profile      `json:"profile"`
	TopTracks      []WindowedTracks       `json:"top_tracks"`
	TopArtists     []WindowedArtists      `json:"top_artists"`
	RecentlyPlayed []services.PlayHistory `json:"recently_played"`
	SavedTracks    []services.SavedTrack  `json:"saved_tracks"`
	ExtractedAt    time.Time              `json:"extracted_at"`
}

// WindowedTracks is one top-tracks response and the window it was requested for.
type WindowedTracks struct {
	Window string           `json:"window,omitempty"`
	Items  []services.Track `json:"items"`
}

// WindowedArtists is one top-artists response and the window it was requested for.
type WindowedArtists struct {
	Window string            `json:"window,omitempty"`
	Items  []services.Artist `json:"items"`
}

// FlatTopTracks concatenates every window's top tracks.
func (r *RawSnapshot) FlatTopTracks() []services.Track {
	var out []services.Track
	for _, g := range r.TopTracks {
		out = append(out, g.Items...)
	}
	return out
}

// FlatTopArtists concatenates every window's top artists.
func (r *RawSnapshot) FlatTopArtists() []services.Artist {
	var out []services.Artist
	for _, g := range r.TopArtists {
		out = append(out, g.Items...)
	}
	return out
}

// ExtractOptions selects what [Extractor.ExtractAll] requests.
type ExtractOptions struct {
	Windows             []string
	Limit               int
	RecentlyPlayedLimit int
	SavedTracksLimit    int
}

// DefaultExtractOptions requests all three windows with the maximum page size.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		Windows:             shared.TimeWindows,
		Limit:               50,
		RecentlyPlayedLimit: 50,
		SavedTracksLimit:    50,
	}
}

// ExtractOptionsFromConfig maps the [extract] config section.
func ExtractOptionsFromConfig(c shared.ExtractConfig) ExtractOptions {
	return ExtractOptions{
		Windows:             c.TimeRanges,
		Limit:               c.Limit,
		RecentlyPlayedLimit: c.RecentlyPlayedLimit,
		SavedTracksLimit:    c.SavedTracksLimit,
	}
}

// Extractor pulls a [RawSnapshot] from the API.
type Extractor struct {
	api    services.API
	opts   ExtractOptions
	logger *log.Logger
	now    func() time.Time
	report Reporter
}

// NewExtractor creates an extractor. A nil logger discards output.
func NewExtractor(api services.API, opts ExtractOptions, logger *log.Logger) *Extractor {
	if logger == nil {
		logger = shared.NopLogger()
	}
	if len(opts.Windows) == 0 {
		opts.Windows = shared.TimeWindows
	}
	return &Extractor{api: api, opts: opts, logger: logger, now: time.Now}
}

// WithReporter sets the progress reporter and returns e.
func (e *Extractor) WithReporter(r Reporter) *Extractor {
	e.report = r
	return e
}

// ExtractAll requests profile, top tracks per window, top artists per window,
// recently played and saved tracks, in that order.
//
// The first error is returned unchanged and no snapshot is produced.
func (e *Extractor) ExtractAll(ctx context.Context) (*RawSnapshot, error) {
	total := 3 + 2*len(e.opts.Windows)
	step := 0
	next := func(phase Phase, window string) {
		step++
		e.report.send(fetchUpdate(phase, step, total, window))
	}

	raw := &RawSnapshot{ExtractedAt: e.now().UTC().Truncate(time.Second)}

	next(FetchProfile, "")
	profile, err := e.api.Profile(ctx)
	if err != nil {
		return nil, e.fail("profile", err)
	}
	raw.Profile = profile

	for _, w := range e.opts.Windows {
		next(FetchTopTracks, w)
		page, err := e.api.TopTracks(ctx, w, e.opts.Limit)
		if err != nil {
			return nil, e.fail("top tracks "+w, err)
		}
		raw.TopTracks = append(raw.TopTracks, WindowedTracks{Window: w, Items: page.Items})
	}

	for _, w := range e.opts.Windows {
		next(FetchTopArtists, w)
		page, err := e.api.TopArtists(ctx, w, e.opts.Limit)
		if err != nil {
			return nil, e.fail("top artists "+w, err)
		}
		raw.TopArtists = append(raw.TopArtists, WindowedArtists{Window: w, Items: page.Items})
	}

	next(FetchRecentlyPlayed, "")
	played, err := e.api.RecentlyPlayed(ctx, e.opts.RecentlyPlayedLimit)
	if err != nil {
		return nil, e.fail("recently played", err)
	}
	raw.RecentlyPlayed = played.Items

	next(FetchSavedTracks, "")
	saved, err := e.api.SavedTracks(ctx, e.opts.SavedTracksLimit)
	if err != nil {
		return nil, e.fail("saved tracks", err)
	}
	raw.SavedTracks = saved.Items

	e.logger.Info("extraction complete",
		"top_tracks", len(raw.FlatTopTracks()),
		"top_artists", len(raw.FlatTopArtists()),
		"recently_played", len(raw.RecentlyPlayed),
		"saved_tracks", len(raw.SavedTracks),
	)
	return raw, nil
}

func (e *Extractor) fail(step string, err error) error {
	e.logger.Error("extraction aborted", "step", step, "err", err)
	return err
}
