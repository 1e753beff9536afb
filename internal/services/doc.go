// Package services wraps the Spotify Web API.
//
// # Client
//
// [SpotifyClient] issues authenticated GET requests through resty. Every request
// waits on a token-bucket limiter, asks its [TokenProvider] for a bearer token
// (which refreshes an expired token before returning it), and on a 401 forces
// exactly one refresh and replays the request once. Non-2xx responses become
// [*shared.HTTPError].
//
// # Payloads
//
// Response types use pointer fields for every value that may be absent, so that
// "missing" and "zero" stay distinguishable. A [Page] whose items key is absent
// is reported as [*shared.MalformedDataError].
//
// # Error Handling
//
//   - [shared.AuthError] : no usable token and no refresh token
//   - [shared.HTTPError] : non-2xx response, carries status and body
//   - [shared.MalformedDataError] : a required key was missing from a response
//
// Token endpoint failures are returned unchanged from the provider.
package services
