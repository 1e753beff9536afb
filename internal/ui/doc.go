// Package ui implements the terminal interfaces using bubbletea's Elm architecture and lipgloss.
//
// The dashboard [Model] shows stored listening stats, one tab per time range:
//  1. [TracksView] : Ranked top tracks from the latest extraction
//  2. [ArtistsView] : Ranked top artists with genre and followers
//  3. [PlaysView] : Recently played tracks
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Pressing s runs the pipeline in the background; progress updates flow through a channel
// and the tables reload from the store once the run completes.
//
// The Render* functions produce static lipgloss tables for non-interactive commands.
package ui
