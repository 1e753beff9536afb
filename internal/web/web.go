package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

const (
	defaultLimit = 50
	maxLimit     = 500
	defaultDays  = 30
)

// Stats is the read side served by the API.
type Stats interface {
	Summary(ctx context.Context, window string, from, to time.Time) (*models.Summary, error)
	TopTracks(ctx context.Context, window string, limit int) ([]models.TopTrackRow, error)
	TopArtists(ctx context.Context, window string, limit int) ([]models.TopArtistRow, error)
	GenreDistribution(ctx context.Context, limit int) ([]models.GenreCount, error)
	ListeningTimeline(ctx context.Context, from, to time.Time) ([]models.DailyPlays, error)
	RecentPlays(ctx context.Context, limit int) ([]models.ListeningHistoryEvent, error)
}

// Handler serves listening stats as JSON.
type Handler struct {
	stats  Stats
	window string
	logger *log.Logger
	router chi.Router
	now    func() time.Time
}

// New creates a Handler. window is used when a request does not name a time range.
func New(stats Stats, window string, logger *log.Logger) *Handler {
	if logger == nil {
		logger = shared.NopLogger()
	}
	if window == "" {
		window = shared.WindowMedium
	}

	h := &Handler{stats: stats, window: window, logger: logger, now: time.Now}

	r := chi.NewRouter()
	r.Get("/healthz", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", h.summary)
		r.Get("/top-tracks", h.topTracks)
		r.Get("/top-artists", h.topArtists)
		r.Get("/genres", h.genres)
		r.Get("/timeline", h.timeline)
		r.Get("/history", h.history)
	})
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Routes lists the paths the handler serves.
func (h *Handler) Routes() []string {
	return []string{
		"/healthz",
		"/api/summary",
		"/api/top-tracks",
		"/api/top-artists",
		"/api/genres",
		"/api/timeline",
		"/api/history",
	}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	window, err := h.windowParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	from, to, err := h.rangeParams(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	s, err := h.stats.Summary(r.Context(), window, from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.write(w, http.StatusOK, s)
}

func (h *Handler) topTracks(w http.ResponseWriter, r *http.Request) {
	window, err := h.windowParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.stats.TopTracks(r.Context(), window, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.write(w, http.StatusOK, listOf(window, rows))
}

func (h *Handler) topArtists(w http.ResponseWriter, r *http.Request) {
	window, err := h.windowParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.stats.TopArtists(r.Context(), window, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.write(w, http.StatusOK, listOf(window, rows))
}

func (h *Handler) genres(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.stats.GenreDistribution(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.write(w, http.StatusOK, listOf("", rows))
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.rangeParams(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	days, err := h.stats.ListeningTimeline(r.Context(), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.write(w, http.StatusOK, listOf("", days))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	plays, err := h.stats.RecentPlays(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.write(w, http.StatusOK, listOf("", plays))
}

type list[T any] struct {
	TimeRange string `json:"time_range,omitempty"`
	Count     int    `json:"count"`
	Items     []T    `json:"items"`
}

func listOf[T any](window string, items []T) list[T] {
	if items == nil {
		items = []T{}
	}
	return list[T]{TimeRange: window, Count: len(items), Items: items}
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) windowParam(r *http.Request) (string, error) {
	w := r.URL.Query().Get("time_range")
	if w == "" {
		return h.window, nil
	}
	if !slices.Contains(shared.TimeWindows, w) {
		return "", fmt.Errorf("%w: unknown time_range %q", shared.ErrInvalidArgument, w)
	}
	return w, nil
}

func limitParam(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxLimit {
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", shared.ErrInvalidArgument, maxLimit)
	}
	return n, nil
}

// rangeParams reads from/to as dates or RFC 3339 timestamps.
// Without from, the range covers the last days (default 30) up to to.
func (h *Handler) rangeParams(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()

	to = h.now().UTC()
	if s := q.Get("to"); s != "" {
		if to, err = parseTime(s); err != nil {
			return from, to, err
		}
	}

	if s := q.Get("from"); s != "" {
		if from, err = parseTime(s); err != nil {
			return from, to, err
		}
	} else {
		days := defaultDays
		if s := q.Get("days"); s != "" {
			if days, err = strconv.Atoi(s); err != nil || days < 1 {
				return from, to, fmt.Errorf("%w: days must be a positive integer", shared.ErrInvalidArgument)
			}
		}
		from = to.AddDate(0, 0, -days)
	}

	if !from.Before(to) {
		return from, to, fmt.Errorf("%w: from must be before to", shared.ErrInvalidArgument)
	}
	return from, to, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a date", shared.ErrInvalidArgument, s)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, shared.ErrInvalidArgument) {
		status = http.StatusBadRequest
	} else {
		h.logger.Error("stats query failed", "error", err)
	}
	h.write(w, status, errorBody{Error: err.Error()})
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}
