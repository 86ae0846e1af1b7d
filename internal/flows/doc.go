// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunValidate, ...) accepts a typed
// dependency struct and returns a result carrying a failure kind instead of
// a bare error, so the engine maps each outcome to its public error, metric
// and audit event explicitly.
//
// # Architecture boundaries
//
// Flow functions coordinate the token codec, session store, reset store and
// rate limiter. They do NOT own any of these resources; ownership stays with
// the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
package flows
