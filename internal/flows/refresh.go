package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// RefreshFailureKind classifies refresh failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureSubjectMismatch
	RefreshFailureSessionNotFound
	RefreshFailureRevoked
	RefreshFailureMismatch
	RefreshFailureIssueAccess
	RefreshFailureStoreUnavailable
)

// RefreshResult carries the updated session or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	Session *session.Session
}

type RefreshSessionStore interface {
	FindByUserID(ctx context.Context, userID string) (*session.Session, error)
	FindByRefreshToken(ctx context.Context, token string) (*session.Session, error)
	ReplaceAccessToken(ctx context.Context, userID, refreshToken, accessToken string, accessExpiresAt int64) (*session.Session, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	VerifyRefresh func(string) (*jwt.Claims, error)
	MintAccess    func(user session.CachedUser) (string, time.Time, error)
	SessionStore  RefreshSessionStore
}

// RunRefresh mints a new access token for a live session. The refresh token
// itself is not rotated. When userID is empty the session is resolved
// through the refresh index instead of the verified subject.
func RunRefresh(ctx context.Context, userID, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err, UserID: userID}
	}

	var sess *session.Session
	if userID == "" {
		userID = claims.Subject
		sess, err = deps.SessionStore.FindByRefreshToken(ctx, refreshToken)
	} else {
		if claims.Subject != userID {
			return RefreshResult{Failure: RefreshFailureSubjectMismatch, UserID: userID}
		}
		sess, err = deps.SessionStore.FindByUserID(ctx, userID)
	}
	if err != nil {
		return RefreshResult{Failure: classifyRefreshStoreErr(err), Err: err, UserID: userID}
	}
	if sess.UserID != claims.Subject {
		return RefreshResult{Failure: RefreshFailureSubjectMismatch, UserID: userID}
	}
	if sess.Revoked {
		return RefreshResult{Failure: RefreshFailureRevoked, UserID: userID}
	}
	if subtle.ConstantTimeCompare([]byte(sess.RefreshToken), []byte(refreshToken)) != 1 {
		return RefreshResult{Failure: RefreshFailureMismatch, UserID: userID}
	}

	access, accessExpiresAt, err := deps.MintAccess(sess.User)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueAccess, Err: err, UserID: userID}
	}

	updated, err := deps.SessionStore.ReplaceAccessToken(ctx, sess.UserID, refreshToken, access, accessExpiresAt.Unix())
	if err != nil {
		return RefreshResult{Failure: classifyRefreshStoreErr(err), Err: err, UserID: userID}
	}

	return RefreshResult{UserID: userID, Session: updated}
}

func classifyRefreshStoreErr(err error) RefreshFailureKind {
	switch {
	case errors.Is(err, session.ErrRedisUnavailable):
		return RefreshFailureStoreUnavailable
	case errors.Is(err, session.ErrRefreshRevoked):
		return RefreshFailureRevoked
	case errors.Is(err, session.ErrRefreshMismatch):
		return RefreshFailureMismatch
	default:
		return RefreshFailureSessionNotFound
	}
}
