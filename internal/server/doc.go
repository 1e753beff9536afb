// Package server provides HTTP routing, middleware, and OAuth handling for the CLI.
//
// # Router Infrastructure
//
// [NewRouter] returns a chi router with request ids, real-ip, panic recovery and
// [RequestLogger] installed. Handlers that own several paths implement [Handler]
// and are registered with [Mount].
//
// [Server] binds an [net/http.Server] to a context: [Server.Serve] runs until the
// context is done, then shuts down gracefully and waits for the serving goroutine.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback. It validates the
// state parameter, exchanges the code through an [Exchanger], and publishes a
// single [OAuthResult] on its result channel. Later callbacks are rejected.
//
// [AwaitCallback] is the one-shot listener used by `spotstats auth login`. It
// returns the token, [shared.ErrTimeout], or the context error, and never leaves
// the listener running.
package server
