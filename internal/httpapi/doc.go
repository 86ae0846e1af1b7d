// Package httpapi exposes the session engine over HTTP: the /api/auth/jwt
// routes, a gated /api/me, health probes and an optional /metrics handler.
package httpapi
