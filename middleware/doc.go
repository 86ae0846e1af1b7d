// Package middleware exposes the HTTP side of the goSession authentication
// gate, built on top of goSession.Engine validation.
//
// # Guards
//
//   - [Gate]: enforces a valid session except on allow-listed path prefixes.
//   - [RequireSession]: enforces a valid session on every request.
//
// Each guard reads the Authorization header, calls Engine.Validate, and puts
// the resulting identity into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated to
// Engine.Validate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.Validate.
package middleware
