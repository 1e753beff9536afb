// Package repositories implements SQLite and PostgreSQL persistence for the listening pipeline.
//
// Queries are written with `?` placeholders and rebound for the connected dialect.
// Artists are upserted by Spotify id. Snapshot and history tables are append-only,
// so each extraction adds a new set of rows keyed by extracted_at.
//
// Key Implementations:
//   - [Loader] : Writes a [models.TransformedBatch] with one transaction per table group
//   - [ArtistRepository] : Artist lookups and direct upserts
//   - [RunRepository] : Pipeline run audit trail
//   - [StatsRepository] : Read-side aggregates over the latest snapshots and play history
package repositories
