package flows

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureToken
	ValidateFailureSessionAbsent
	ValidateFailureSessionRevoked
	ValidateFailureTokenMismatch
	ValidateFailureStoreUnavailable
)

// ValidateResult returns either claims/session success payload or classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
	Session *session.Session
}

type ValidateSessionStore interface {
	FindByUserID(ctx context.Context, userID string) (*session.Session, error)
}

// ValidateDeps captures the gate dependencies.
type ValidateDeps struct {
	VerifyAccess     func(string) (*jwt.Claims, error)
	SessionStore     ValidateSessionStore
	StoreUnavailable error
}

// RunValidate verifies the token and then cross-checks it against the stored
// session. The cross-check runs only once a verified subject is known.
func RunValidate(ctx context.Context, tokenStr string, deps ValidateDeps) ValidateResult {
	claims, err := deps.VerifyAccess(tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureToken, Err: err}
	}

	sess, err := deps.SessionStore.FindByUserID(ctx, claims.Subject)
	if err != nil {
		if deps.StoreUnavailable != nil && errors.Is(err, deps.StoreUnavailable) {
			return ValidateResult{Failure: ValidateFailureStoreUnavailable, Err: err, Claims: claims}
		}
		return ValidateResult{Failure: ValidateFailureSessionAbsent, Err: err, Claims: claims}
	}
	if sess.Revoked {
		return ValidateResult{Failure: ValidateFailureSessionRevoked, Claims: claims}
	}
	if subtle.ConstantTimeCompare([]byte(sess.AccessToken), []byte(tokenStr)) != 1 {
		return ValidateResult{Failure: ValidateFailureTokenMismatch, Claims: claims}
	}

	return ValidateResult{
		Claims:  claims,
		Session: sess,
	}
}
