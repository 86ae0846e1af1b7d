// Package session provides Redis-backed persistence for the single active
// session of each user, plus a secondary index keyed by refresh token.
//
// # Key layout
//
//	{prefix}:session:{userId}             encoded [Session]
//	{prefix}:session-by-refresh:{token}   encoded [RefreshRecord]
//
// Both keys are written together with the same TTL, derived from the
// session's absolute expiry. Writes that replace or revoke run inside
// WATCH/MULTI so that the last completed login always wins.
//
// # What this package must NOT do
//
//   - Import goSession or jwt (no upward imports).
//   - Verify token signatures or make authorization decisions.
package session
