// Package web serves the stored listening stats as a read-only JSON API.
//
// # Routes
//
//	GET /healthz          → liveness
//	GET /api/summary      → headline numbers for a time range
//	GET /api/top-tracks   → ranked tracks from the latest extraction
//	GET /api/top-artists  → ranked artists from the latest extraction
//	GET /api/genres       → artists per genre string
//	GET /api/timeline     → plays per UTC day
//	GET /api/history      → most recent plays
//
// # Parameters
//
//   - time_range: short_term, medium_term or long_term
//   - limit: 1 to 500, default 50
//   - from, to: a date (2006-01-02) or RFC 3339 timestamp
//   - days: length of the range when from is omitted, default 30
//
// Invalid parameters return 400 with {"error": "..."}. List endpoints wrap
// their rows as {"time_range", "count", "items"}.
//
// The [Handler] implements server.Handler and is mounted on a router built by
// server.NewRouter, which adds request ids, logging and panic recovery.
package web
