package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/desertthunder/spotstats/internal/models"
	th "github.com/desertthunder/spotstats/internal/testing"
)

func ptr[T any](v T) *T { return &v }

func fixture() *Export {
	at := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	return &Export{
		TimeRange:   "medium_term",
		ExtractedAt: &at,
		Tracks: []models.TopTrackRow{
			{Rank: 1, TrackID: "track1", Name: "Song One", ArtistID: "ar1", ArtistName: "Artist One",
				AlbumName: "Album One", Popularity: 71, DurationMS: 180000, ExtractedAt: at},
			{Rank: 2, TrackID: "track2", Name: "Song Two", ArtistID: "ar2", ArtistName: "Artist Two",
				DurationMS: 241400, Explicit: true, ExtractedAt: at},
		},
		Artists: []models.TopArtistRow{
			{Rank: 1, ExtractedAt: at, Artist: models.Artist{
				ID: "ar2", Name: "Artist Two", Genre: ptr("dream pop, shoegaze"), Popularity: ptr(55),
				ImageURL: ptr("https://i.scdn.co/image/ar2"),
			}},
			{Rank: 2, ExtractedAt: at, Artist: models.Artist{ID: "ar1", Name: "Artist One"}},
		},
		Plays: []models.ListeningHistoryEvent{
			{TrackID: "track1", TrackName: "Song One", ArtistID: "ar1", ArtistName: "Artist One",
				PlayedAt: time.Date(2025, 3, 13, 22, 5, 0, 0, time.UTC), Context: ptr("album"), ExtractedAt: at},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(fixture())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Rank,ID,Title,Artist,Album,Duration,Popularity,Explicit") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "1,track1,Song One,Artist One,Album One,3:00,71,false") {
			t.Errorf("CSV missing first track, got: %s", output)
		}
		if !strings.Contains(output, "2,track2,Song Two,Artist Two,,4:01,0,true") {
			t.Errorf("CSV missing second track, got: %s", output)
		}
	})

	t.Run("ArtistsToCSV", func(t *testing.T) {
		data, err := ArtistsToCSV(fixture())
		if err != nil {
			t.Fatalf("ArtistsToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, `1,ar2,Artist Two,"dream pop, shoegaze",55,,`) {
			t.Errorf("CSV missing quoted genre row, got: %s", output)
		}
		if !strings.Contains(output, "2,ar1,Artist One,,,,") {
			t.Errorf("CSV should leave unknown values empty, got: %s", output)
		}
	})

	t.Run("PlaysToCSV", func(t *testing.T) {
		data, err := PlaysToCSV(fixture())
		if err != nil {
			t.Fatalf("PlaysToCSV failed: %v", err)
		}
		if !strings.Contains(string(data), "2025-03-13T22:05:00Z,track1,Song One,Artist One,album") {
			t.Errorf("CSV missing play, got: %s", data)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		t.Run("without cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(fixture(), "")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}

			output := string(data)
			for _, want := range []string{
				"# Top Listening: Last 6 Months",
				"**Extracted**: 2025-03-14T09:30:00Z",
				"**Tracks**: 2",
				"## Tracks",
				"1. Artist One - Song One (Album One) [3:00]",
				"2. Artist Two - Song Two [4:01]",
				"## Artists",
				"1. Artist Two _dream pop, shoegaze_",
				"| 2025-03-13 22:05 | Song One | Artist One |",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q", want)
				}
			}
			if strings.Contains(output, "![Cover]") {
				t.Error("Markdown should not reference a cover image")
			}
		})

		t.Run("with cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(fixture(), "cover.jpg")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}
			if !strings.Contains(string(data), "![Cover](cover.jpg)") {
				t.Error("Markdown missing cover image reference")
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(fixture())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Time range: Last 6 Months") {
			t.Errorf("Text missing time range, got: %s", output)
		}
		if !strings.Contains(output, "1. Artist One - Song One") {
			t.Errorf("Text missing first track, got: %s", output)
		}
		if !strings.Contains(output, "Artists: 2") {
			t.Errorf("Text missing artist section, got: %s", output)
		}
	})

	t.Run("ToJSON", func(t *testing.T) {
		data, err := ToJSON(fixture())
		if err != nil {
			t.Fatalf("ToJSON failed: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		for _, key := range []string{"time_range", "top_tracks", "top_artists", "recent_plays"} {
			if _, ok := decoded[key]; !ok {
				t.Errorf("JSON missing %s", key)
			}
		}
	})

	t.Run("EmptyExport", func(t *testing.T) {
		export := &Export{TimeRange: "short_term"}
		data, err := ExportToMarkdown(export, "")
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		if strings.Contains(string(data), "## Artists") || strings.Contains(string(data), "## Recently Played") {
			t.Errorf("empty sections should be omitted, got: %s", data)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"csv", FormatCSV},
		{"MD", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"txt", FormatText},
		{" json ", FormatJSON},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}

	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                         "0:00",
		59 * time.Second:          "0:59",
		3 * time.Minute:           "3:00",
		241400 * time.Millisecond: "4:01",
		61 * time.Minute:          "61:00",
	}
	for in, want := range tests {
		if got := FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestWrite(t *testing.T) {
	t.Run("AllFormats", func(t *testing.T) {
		for _, f := range Formats {
			var buf bytes.Buffer
			if err := Write(&buf, f, fixture()); err != nil {
				t.Errorf("Write(%s) failed: %v", f, err)
			}
			if buf.Len() == 0 {
				t.Errorf("Write(%s) produced no output", f)
			}
		}
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		if err := Write(&bytes.Buffer{}, Format("xml"), fixture()); err == nil {
			t.Error("expected error for unknown format")
		}
	})

	t.Run("WriterFails", func(t *testing.T) {
		if err := Write(&th.FWriter{}, FormatText, fixture()); err == nil {
			t.Error("expected error from failing writer")
		}

		var buf bytes.Buffer
		lw := th.NewLimitedWriter(0, 0, &buf)
		if err := Write(&lw, FormatCSV, fixture()); err == nil {
			t.Error("expected error from exhausted writer")
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		if _, err := DownloadImage(""); err == nil {
			t.Error("expected error for empty URL")
		}
	})

	t.Run("Success", func(t *testing.T) {
		client := resty.New().SetTransport(th.NewMockRoundTripper(th.NewResponse(http.StatusOK, []byte("jpeg")), nil))
		data, err := downloadImage(client, "https://i.scdn.co/image/x")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "jpeg" {
			t.Errorf("unexpected body %q", data)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		client := resty.New().SetTransport(th.NewMockRoundTripper(th.NewResponse(http.StatusNotFound, nil), nil))
		if _, err := downloadImage(client, "https://i.scdn.co/image/x"); err == nil {
			t.Error("expected error for 404")
		}
	})

	t.Run("TransportError", func(t *testing.T) {
		client := resty.New().SetTransport(th.NewMockRoundTripper(nil, errors.New("dial failed")))
		if _, err := downloadImage(client, "https://i.scdn.co/image/x"); err == nil {
			t.Error("expected transport error")
		}
	})

	t.Run("BodyReadError", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: &th.FCloser{}}
		client := resty.New().SetTransport(th.NewMockRoundTripper(resp, nil))
		if _, err := downloadImage(client, "https://i.scdn.co/image/x"); err == nil {
			t.Error("expected body read error")
		}
	})
}

func TestFileExports(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			th.InDir(t, tempDir)

			result, err := WriteCSVExport(fixture(), "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.TracksFile != "spotstats_medium_term_tracks.csv" {
				t.Errorf("Expected default tracks file, got '%s'", result.TracksFile)
			}
			for _, f := range []string{result.TracksFile, result.ArtistsFile, result.PlaysFile, result.MetadataFile} {
				th.AssertFileExists(t, f)
			}

			metadataContent := th.MustReadFile(t, result.MetadataFile)
			if !strings.Contains(metadataContent, `"tracks": 2`) || !strings.Contains(metadataContent, "medium_term") {
				t.Errorf("Metadata JSON missing expected fields: %s", metadataContent)
			}
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "custom_export")
			result, err := WriteCSVExport(fixture(), base)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if result.ArtistsFile != base+"_artists.csv" {
				t.Errorf("unexpected artists file %s", result.ArtistsFile)
			}
			if !strings.Contains(th.MustReadFile(t, result.TracksFile), "Song One") {
				t.Error("tracks CSV missing data")
			}
		})

		t.Run("UnwritableDirectory", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "missing", "dir", "x")
			if _, err := WriteCSVExport(fixture(), base); err == nil {
				t.Error("expected error writing into a missing directory")
			}
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("WithoutCover", func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "md")
			result, err := WriteMarkdownExport(fixture(), dir, false)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			th.AssertDirExists(t, dir)
			if len(result.Files) != 1 || result.CoverImage != "" {
				t.Errorf("expected only README, got %+v", result)
			}
			if !strings.Contains(th.MustReadFile(t, filepath.Join(dir, "README.md")), "## Tracks") {
				t.Error("README missing tracks section")
			}
		})

		t.Run("WithCover", func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "md")
			client := resty.New().SetTransport(th.NewMockRoundTripper(th.NewResponse(http.StatusOK, []byte("jpeg")), nil))

			result, err := writeMarkdownExport(client, fixture(), dir, true)
			if err != nil {
				t.Fatalf("writeMarkdownExport failed: %v", err)
			}
			if result.CoverImage != filepath.Join(dir, "cover.jpg") {
				t.Errorf("unexpected cover path %q", result.CoverImage)
			}
			if th.MustReadFile(t, result.CoverImage) != "jpeg" {
				t.Error("cover image content mismatch")
			}
			if !strings.Contains(th.MustReadFile(t, filepath.Join(dir, "README.md")), "![Cover](cover.jpg)") {
				t.Error("README missing cover reference")
			}
		})

		t.Run("CoverDownloadFails", func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "md")
			client := resty.New().SetTransport(th.NewMockRoundTripper(th.NewResponse(http.StatusForbidden, nil), nil))

			result, err := writeMarkdownExport(client, fixture(), dir, true)
			if err != nil {
				t.Fatalf("download failure should not fail the export: %v", err)
			}
			if result.CoverImage != "" {
				t.Errorf("expected no cover, got %q", result.CoverImage)
			}
		})
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.txt")
		got, err := WriteTextExport(fixture(), path)
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("WriteJSONExport", func(t *testing.T) {
		tempDir := t.TempDir()
		th.InDir(t, tempDir)

		got, err := WriteJSONExport(fixture(), "")
		if err != nil {
			t.Fatalf("WriteJSONExport failed: %v", err)
		}
		if got != "spotstats_medium_term.json" {
			t.Errorf("unexpected default path %s", got)
		}
		th.AssertFileExists(t, got)
	})
}
