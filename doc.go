// Package goSession issues and validates bearer session tokens backed by a
// server-side session record in Redis.
//
// Login delegates credential checks to a [UserDirectory] and stores one
// session per user holding the current access and refresh tokens. A bearer
// token is accepted only while it is the exact access token recorded in that
// session, so a new login, a refresh, a logout or a password reset
// immediately invalidates earlier tokens. Refresh issues a new access token
// without rotating the refresh token.
//
// Password resets use single-use random tokens. Only their SHA-256 digest is
// stored, and redemption is claimed atomically so a token can succeed once.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface: [Engine], [Builder], [Config] and value
// types. Flow orchestration, reset-token storage and throttling live under
// internal/. The session codec and store live in the session package and the
// token codec in the jwt package.
//
// # Errors
//
// Failures are reported with the sentinel errors in errors.go and must be
// matched with errors.Is. A Redis outage always surfaces as
// [ErrStoreUnavailable] and never as a credential failure.
package goSession
