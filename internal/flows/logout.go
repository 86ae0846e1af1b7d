package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/session"
)

type LogoutSessionStore interface {
	DeleteByRefreshToken(ctx context.Context, token string) error
	RevokeRefreshToken(ctx context.Context, token string) error
}

// LogoutDeps captures logout and revoke flow dependencies.
type LogoutDeps struct {
	SessionStore LogoutSessionStore
}

// LogoutResult reports whether the store could be reached. Unknown tokens are
// not failures.
type LogoutResult struct {
	StoreUnavailable bool
	Err              error
}

// RunLogout hard-deletes the session owning refreshToken.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	if refreshToken == "" {
		return LogoutResult{}
	}
	return logoutResult(deps.SessionStore.DeleteByRefreshToken(ctx, refreshToken))
}

// RunRevokeRefresh flags refreshToken as revoked while its record expires
// naturally.
func RunRevokeRefresh(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	if refreshToken == "" {
		return LogoutResult{}
	}
	return logoutResult(deps.SessionStore.RevokeRefreshToken(ctx, refreshToken))
}

func logoutResult(err error) LogoutResult {
	switch {
	case err == nil, errors.Is(err, session.ErrSessionNotFound):
		return LogoutResult{}
	case errors.Is(err, session.ErrRedisUnavailable):
		return LogoutResult{StoreUnavailable: true, Err: err}
	default:
		return LogoutResult{Err: err}
	}
}
