// Package models defines the entities that flow through the listening pipeline.
//
// The package contains two categories of types:
//
// 1. Pipeline records, produced by the transform stage and persisted by the loader
//   - [Artist] : one row per Spotify artist, merged across sources and upserted
//   - [TopTrackSnapshot] : a ranked entry of a user's top tracks for a time window
//   - [TopArtistSnapshot] : a ranked entry of a user's top artists for a time window
//   - [ListeningHistoryEvent] : a single play from the recently-played feed
//   - [TransformedBatch] : everything one extraction produced, sharing one timestamp
//
// 2. Bookkeeping and read models
//   - [LoadResult] : per-group row counts of a load
//   - [Run] : the audit record of one pipeline execution
//   - [Summary], [TopTrackRow], [TopArtistRow], [GenreCount], [DailyPlays] : dashboard aggregates
//
// Snapshots and history are append-only. Only artists are ever updated.
package models
