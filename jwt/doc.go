// Package jwt mints and verifies the HS256 bearer tokens used for access and
// refresh. Verification is purely cryptographic: the codec has no knowledge of
// sessions or revocation, which the engine cross-checks separately.
package jwt
