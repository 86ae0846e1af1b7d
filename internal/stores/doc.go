// Package stores provides the Redis-backed store for single-use password
// reset tokens.
//
// # Design
//
// Records are keyed by the SHA-256 digest of the token and persisted in a
// versioned binary encoding with a TTL. Redemption is split into Claim,
// MarkUsed and Release so that a token is only spent after the downstream
// credential update succeeded. Each claim carries a ClaimID, and MarkUsed
// and Release only act for the redemption still holding it. Every mutation runs in a WATCH/MULTI
// optimistic transaction with bounded retry on contention and keeps the
// key's remaining TTL.
//
// # What this package must NOT do
//
//   - Import goSession or any sibling internal package.
//   - Persist or log plaintext reset tokens.
package stores
