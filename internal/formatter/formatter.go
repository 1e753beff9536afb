// package formatter exports listening snapshots to CSV, Markdown, plain text and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/desertthunder/spotstats/internal/models"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// Formats lists the supported export formats.
var Formats = []Format{FormatCSV, FormatMarkdown, FormatText, FormatJSON}

// ParseFormat accepts a format name or its common alias ("md", "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported format %q (want csv, markdown, text or json)", s)
}

// Export is one time window's latest snapshot plus recent plays.
type Export struct {
	TimeRange   string                         `json:"time_range"`
	ExtractedAt *time.Time                     `json:"extracted_at,omitempty"`
	Tracks      []models.TopTrackRow           `json:"top_tracks"`
	Artists     []models.TopArtistRow          `json:"top_artists"`
	Plays       []models.ListeningHistoryEvent `json:"recent_plays"`
}

// Name is the default base filename for the export.
func (e *Export) Name() string {
	return "spotstats_" + e.TimeRange
}

// coverURL returns the image of the top-ranked artist, if any.
func (e *Export) coverURL() string {
	for _, a := range e.Artists {
		if a.Artist.ImageURL != nil && *a.Artist.ImageURL != "" {
			return *a.Artist.ImageURL
		}
	}
	return ""
}

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrEmpty(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

// ExportToCSV converts the top tracks to CSV with columns: Rank, ID, Title, Artist, Album, Duration, Popularity, Explicit
func ExportToCSV(export *Export) ([]byte, error) {
	rows := [][]string{{"Rank", "ID", "Title", "Artist", "Album", "Duration", "Popularity", "Explicit"}}
	for _, t := range export.Tracks {
		rows = append(rows, []string{
			strconv.Itoa(t.Rank),
			t.TrackID,
			t.Name,
			t.ArtistName,
			t.AlbumName,
			FormatDuration(t.Duration()),
			strconv.Itoa(t.Popularity),
			strconv.FormatBool(t.Explicit),
		})
	}
	return writeCSV(rows)
}

// ArtistsToCSV converts the top artists to CSV with columns: Rank, ID, Name, Genre, Popularity, Followers, URL
func ArtistsToCSV(export *Export) ([]byte, error) {
	rows := [][]string{{"Rank", "ID", "Name", "Genre", "Popularity", "Followers", "URL"}}
	for _, r := range export.Artists {
		a := r.Artist
		rows = append(rows, []string{
			strconv.Itoa(r.Rank),
			a.ID,
			a.Name,
			deref(a.Genre),
			intOrEmpty(a.Popularity),
			intOrEmpty(a.Followers),
			deref(a.SpotifyURL),
		})
	}
	return writeCSV(rows)
}

// PlaysToCSV converts recent plays to CSV with columns: Played At, Track ID, Track, Artist, Context
func PlaysToCSV(export *Export) ([]byte, error) {
	rows := [][]string{{"Played At", "Track ID", "Track", "Artist", "Context"}}
	for _, p := range export.Plays {
		rows = append(rows, []string{
			p.PlayedAt.UTC().Format(time.RFC3339),
			p.TrackID,
			p.TrackName,
			p.ArtistName,
			deref(p.Context),
		})
	}
	return writeCSV(rows)
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	for i, row := range rows {
		if err := writer.Write(row); err != nil {
			if i == 0 {
				return nil, fmt.Errorf("failed to write CSV headers: %w", err)
			}
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func windowTitle(window string) string {
	switch window {
	case "short_term":
		return "Last 4 Weeks"
	case "medium_term":
		return "Last 6 Months"
	case "long_term":
		return "All Time"
	}
	return window
}

// ExportToMarkdown converts the export to Markdown with an optional cover image
func ExportToMarkdown(export *Export, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Top Listening: %s\n\n", windowTitle(export.TimeRange))

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if export.ExtractedAt != nil {
		fmt.Fprintf(&buf, "**Extracted**: %s\n", export.ExtractedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Artists**: %d\n\n", len(export.Artists))

	buf.WriteString("## Tracks\n\n")
	for _, t := range export.Tracks {
		albumPart := ""
		if t.AlbumName != "" {
			albumPart = fmt.Sprintf(" (%s)", t.AlbumName)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", t.Rank, t.ArtistName, t.Name, albumPart, FormatDuration(t.Duration()))
	}

	if len(export.Artists) > 0 {
		buf.WriteString("\n## Artists\n\n")
		for _, r := range export.Artists {
			genre := ""
			if g := deref(r.Artist.Genre); g != "" {
				genre = fmt.Sprintf(" _%s_", g)
			}
			fmt.Fprintf(&buf, "%d. %s%s\n", r.Rank, r.Artist.Name, genre)
		}
	}

	if len(export.Plays) > 0 {
		buf.WriteString("\n## Recently Played\n\n")
		buf.WriteString("| Played At | Track | Artist |\n|---|---|---|\n")
		for _, p := range export.Plays {
			fmt.Fprintf(&buf, "| %s | %s | %s |\n", p.PlayedAt.UTC().Format("2006-01-02 15:04"), p.TrackName, p.ArtistName)
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts the export to plain text format
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Time range: %s\n", windowTitle(export.TimeRange))
	if export.ExtractedAt != nil {
		fmt.Fprintf(&buf, "Extracted: %s\n", export.ExtractedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for _, t := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", t.Rank, t.ArtistName, t.Name)
	}

	if len(export.Artists) > 0 {
		fmt.Fprintf(&buf, "\nArtists: %d\n\n", len(export.Artists))
		for _, r := range export.Artists {
			fmt.Fprintf(&buf, "%d. %s\n", r.Rank, r.Artist.Name)
		}
	}

	return buf.Bytes(), nil
}

// ToJSON renders the whole export as indented JSON.
func ToJSON(export *Export) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return append(data, '\n'), nil
}

// metadata is the sidecar JSON written next to CSV exports.
type metadata struct {
	TimeRange   string     `json:"time_range"`
	ExtractedAt *time.Time `json:"extracted_at,omitempty"`
	Tracks      int        `json:"tracks"`
	Artists     int        `json:"artists"`
	Plays       int        `json:"plays"`
}

// ToMetadataJSON generates a JSON summary of the export (without rows)
func ToMetadataJSON(export *Export) ([]byte, error) {
	return json.MarshalIndent(metadata{
		TimeRange:   export.TimeRange,
		ExtractedAt: export.ExtractedAt,
		Tracks:      len(export.Tracks),
		Artists:     len(export.Artists),
		Plays:       len(export.Plays),
	}, "", "  ")
}

// Write renders export in format to w.
func Write(w io.Writer, format Format, export *Export) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = ExportToCSV(export)
	case FormatMarkdown:
		data, err = ExportToMarkdown(export, "")
	case FormatText:
		data, err = ExportToText(export)
	case FormatJSON:
		data, err = ToJSON(export)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s export: %w", format, err)
	}
	return nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	return downloadImage(resty.New(), url)
}

func downloadImage(client *resty.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	resp, err := client.SetTimeout(30 * time.Second).R().Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	ArtistsFile  string
	PlaysFile    string
	MetadataFile string
}

// WriteCSVExport writes tracks, artists and plays CSV files plus a metadata JSON file.
//
// Defaults to [Export.Name] as the base filename and creates {base}_tracks.csv,
// {base}_artists.csv, {base}_plays.csv and {base}_metadata.json
func WriteCSVExport(export *Export, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Name()
	}

	result := &CSVExportResult{
		TracksFile:   baseFilepath + "_tracks.csv",
		ArtistsFile:  baseFilepath + "_artists.csv",
		PlaysFile:    baseFilepath + "_plays.csv",
		MetadataFile: baseFilepath + "_metadata.json",
	}

	files := []struct {
		path   string
		render func(*Export) ([]byte, error)
	}{
		{result.TracksFile, ExportToCSV},
		{result.ArtistsFile, ArtistsToCSV},
		{result.PlaysFile, PlaysToCSV},
		{result.MetadataFile, ToMetadataJSON},
	}
	for _, f := range files {
		data, err := f.render(export)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", f.path, err)
		}
		if err := os.WriteFile(f.path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.path, err)
		}
	}

	return result, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports to Markdown in a dedicated directory.
//
// Directory name defaults to [Export.Name]. When withCover is set, the top
// artist's image is downloaded next to the README; a failed download only
// drops the cover. Creates {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(export *Export, outputDir string, withCover bool) (*MarkdownExportResult, error) {
	return writeMarkdownExport(resty.New(), export, outputDir, withCover)
}

func writeMarkdownExport(client *resty.Client, export *Export, outputDir string, withCover bool) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.Name()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if url := export.coverURL(); withCover && url != "" {
		imageData, err := downloadImage(client, url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports to plain text format.
//
// Defaults to {Export.Name}.txt as the filename.
func WriteTextExport(export *Export, path string) (string, error) {
	if path == "" {
		path = export.Name() + ".txt"
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}
	return path, nil
}

// WriteJSONExport writes the full export as JSON. Defaults to {Export.Name}.json.
func WriteJSONExport(export *Export, path string) (string, error) {
	if path == "" {
		path = export.Name() + ".json"
	}

	data, err := ToJSON(export)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}
	return path, nil
}
