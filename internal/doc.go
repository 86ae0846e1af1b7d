// Package internal contains helpers that are private to goSession, currently
// reset token generation and hashing.
//
// # Sub-packages
//
//   - flows: pure-function orchestrators for every Engine operation
//   - rate: Redis-backed fixed-window counters for login and reset throttling
//   - stores: Redis store for single-use password reset records
//   - directory: user directory adapters (HTTP user service, in-memory)
//   - config: service settings loaded from the environment
//   - httpapi: HTTP routes of the gosession binary
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
//   - Be imported by any package outside the goSession module.
package internal
