package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureDirectoryUnavailable
	LoginFailureUserNotFound
	LoginFailureRejected
	LoginFailurePasswordChangeRequired
	LoginFailureIssueTokens
	LoginFailureStoreUnavailable
	LoginFailureSaveSession
)

// LoginResult carries the stored session or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	UserID  string
	Session *session.Session
}

type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, username, ip string) error
	IncrementLogin(ctx context.Context, username, ip string) error
	ResetLogin(ctx context.Context, username, ip string) error
}

type LoginSessionStore interface {
	Save(ctx context.Context, sess *session.Session) error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	// Authenticate reports (false, nil, nil) for rejected credentials and a
	// non-nil error only when the directory could not answer.
	Authenticate                 func(ctx context.Context, username, password string) (bool, *session.CachedUser, error)
	MintAccess                   func(user session.CachedUser) (string, time.Time, error)
	MintRefresh                  func(userID string) (string, time.Time, error)
	Now                          func() time.Time
	ClientIP                     func(context.Context) string
	RejectPasswordChangeRequired bool
	RateLimiter                  LoginRateLimiter
	SessionStore                 LoginSessionStore
	RateLimited                  error
	UserNotFound                 error
	StoreUnavailable             error
	Warn                         func(string, error)
}

// RunLogin authenticates against the directory, mints an access/refresh pair
// and stores the resulting session, replacing any earlier session of the user.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	ip := deps.ClientIP(ctx)

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, username, ip); err != nil {
			if errors.Is(err, deps.RateLimited) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			deps.warn("login throttle check failed", err)
		}
	}

	authenticated, user, err := deps.Authenticate(ctx, username, password)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			deps.recordFailure(ctx, username, ip)
			return LoginResult{Failure: LoginFailureUserNotFound, Err: err}
		}
		return LoginResult{Failure: LoginFailureDirectoryUnavailable, Err: err}
	}
	if !authenticated {
		deps.recordFailure(ctx, username, ip)
		return LoginResult{Failure: LoginFailureRejected}
	}
	if user == nil || user.ID == "" {
		deps.recordFailure(ctx, username, ip)
		return LoginResult{Failure: LoginFailureUserNotFound}
	}
	if deps.RejectPasswordChangeRequired && user.PasswordChangeRequired {
		return LoginResult{Failure: LoginFailurePasswordChangeRequired, UserID: user.ID}
	}

	access, accessExpiresAt, err := deps.MintAccess(*user)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssueTokens, Err: err, UserID: user.ID}
	}
	refresh, expiresAt, err := deps.MintRefresh(user.ID)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssueTokens, Err: err, UserID: user.ID}
	}

	sess := &session.Session{
		UserID:          user.ID,
		AccessToken:     access,
		RefreshToken:    refresh,
		User:            *user,
		AccessExpiresAt: accessExpiresAt.Unix(),
		ExpiresAt:       expiresAt.Unix(),
		CreatedAt:       deps.Now().Unix(),
	}
	if err := deps.SessionStore.Save(ctx, sess); err != nil {
		if deps.StoreUnavailable != nil && errors.Is(err, deps.StoreUnavailable) {
			return LoginResult{Failure: LoginFailureStoreUnavailable, Err: err, UserID: user.ID}
		}
		return LoginResult{Failure: LoginFailureSaveSession, Err: err, UserID: user.ID}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, username, ip); err != nil {
			deps.warn("login throttle reset failed", err)
		}
	}

	return LoginResult{UserID: user.ID, Session: sess}
}

func (d LoginDeps) recordFailure(ctx context.Context, username, ip string) {
	if d.RateLimiter == nil {
		return
	}
	if err := d.RateLimiter.IncrementLogin(ctx, username, ip); err != nil {
		d.warn("login throttle increment failed", err)
	}
}

func (d LoginDeps) warn(msg string, err error) {
	if d.Warn != nil {
		d.Warn(msg, err)
	}
}
