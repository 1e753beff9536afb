package models

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/spotstats/internal/shared"
)

func ptr[T any](v T) *T { return &v }

func validBatch() *TransformedBatch {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &TransformedBatch{
		ExtractedAt: now,
		Artists: []Artist{
			{ID: "a1", Name: "Artist One", Popularity: ptr(50)},
			{ID: "a2", Name: "Artist Two"},
		},
		TopTracks: []TopTrackSnapshot{
			{TrackID: "t1", ArtistID: "a1", Rank: 1, TimeRange: shared.WindowShort, ExtractedAt: now},
			{TrackID: "t2", ArtistID: "a2", Rank: 2, TimeRange: shared.WindowShort, ExtractedAt: now},
			{TrackID: "t1", ArtistID: "a1", Rank: 1, TimeRange: shared.WindowLong, ExtractedAt: now},
		},
		TopArtists: []TopArtistSnapshot{
			{ArtistID: "a1", Rank: 1, TimeRange: shared.WindowMedium, ExtractedAt: now},
		},
		ListeningHistory: []ListeningHistoryEvent{
			{TrackID: "t1", ArtistID: "a1", PlayedAt: now.Add(-time.Hour), ExtractedAt: now},
		},
	}
}

func TestTransformedBatchValidate(t *testing.T) {
	t.Run("valid batch", func(t *testing.T) {
		if err := validBatch().Validate(); err != nil {
			t.Fatalf("expected valid batch, got %v", err)
		}
	})

	tc := []struct {
		name   string
		mutate func(*TransformedBatch)
	}{
		{"duplicate artist", func(b *TransformedBatch) { b.Artists = append(b.Artists, Artist{ID: "a1", Name: "Again"}) }},
		{"artist without name", func(b *TransformedBatch) { b.Artists[1].Name = "" }},
		{"popularity out of range", func(b *TransformedBatch) { b.Artists[0].Popularity = ptr(101) }},
		{"rank gap", func(b *TransformedBatch) { b.TopTracks[1].Rank = 3 }},
		{"zero rank", func(b *TransformedBatch) { b.TopArtists[0].Rank = 0 }},
		{"unknown window", func(b *TransformedBatch) { b.TopTracks[2].TimeRange = "forever" }},
		{"play without timestamp", func(b *TransformedBatch) { b.ListeningHistory[0].PlayedAt = time.Time{} }},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			b := validBatch()
			tt.mutate(b)
			if err := b.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestLoadResult(t *testing.T) {
	var r LoadResult
	r.Add(GroupArtists, 2)
	r.Add(GroupTopTracks, 3)

	if r.Total() != 5 {
		t.Errorf("expected total 5, got %d", r.Total())
	}
	if len(r.Committed) != 2 || r.Committed[0] != GroupArtists || r.Committed[1] != GroupTopTracks {
		t.Errorf("unexpected committed groups: %v", r.Committed)
	}
}

func TestRunValidate(t *testing.T) {
	if err := (Run{ID: "x", Status: RunRunning}).Validate(); err != nil {
		t.Errorf("expected valid run, got %v", err)
	}
	if err := (Run{ID: "x", Status: "paused"}).Validate(); err == nil {
		t.Error("expected invalid status error")
	}

	start := time.Now()
	end := start.Add(3 * time.Second)
	if d := (Run{StartedAt: start, FinishedAt: &end}).Duration(); d != 3*time.Second {
		t.Errorf("expected 3s, got %s", d)
	}
}
