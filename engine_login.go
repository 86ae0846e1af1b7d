package goSession

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/session"
)

const tokenTypeBearer = "Bearer"

// Login authenticates username and password against the directory and
// opens a session, replacing any session the user already had.
//
// Rejected credentials, unknown users and directory outages all return
// [ErrInvalidCredentials]; outages are logged and counted separately.
func (e *Engine) Login(ctx context.Context, username, password string) (*SessionResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	log := e.loggerFor(ctx)

	res := flows.RunLogin(ctx, username, password, e.flows.Login)

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, nil)
		return nil, ErrLoginRateLimited
	case flows.LoginFailureDirectoryUnavailable:
		e.metricInc(MetricDirectoryUnavailable)
		e.metricInc(MetricLoginFailure)
		log.Error().Err(res.Err).Msg("user directory unavailable during login")
		e.emitAudit(ctx, auditEventDirectoryUnavailable, false, "", ErrDirectoryUnavailable, reasonMetadata("login"))
		return nil, ErrInvalidCredentials
	case flows.LoginFailureUserNotFound, flows.LoginFailureRejected:
		e.metricInc(MetricLoginFailure)
		reason := "credentials_rejected"
		if res.Failure == flows.LoginFailureUserNotFound {
			reason = "user_not_found"
		}
		log.Info().Str("reason", reason).Msg("login rejected")
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, reasonMetadata(reason))
		return nil, ErrInvalidCredentials
	case flows.LoginFailurePasswordChangeRequired:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, ErrPasswordChangeRequired, reasonMetadata("password_change_required"))
		return nil, ErrPasswordChangeRequired
	case flows.LoginFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		e.metricInc(MetricLoginFailure)
		log.Error().Err(res.Err).Str("user_id", res.UserID).Msg("session store unavailable during login")
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, ErrStoreUnavailable, reasonMetadata("session_save_failed"))
		return nil, storeUnavailable(res.Err)
	default:
		e.metricInc(MetricLoginFailure)
		log.Error().Err(res.Err).Str("user_id", res.UserID).Msg("login failed")
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, res.Err, reasonMetadata("issue_failed"))
		return nil, fmt.Errorf("login: %w", res.Err)
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	log.Info().Str("user_id", res.UserID).Msg("session created")
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.UserID, nil, nil)

	return e.sessionResult(res.Session), nil
}

// Refresh issues a new access token for the session holding refreshToken.
// The refresh token is not rotated. userID must match the token subject;
// an empty userID lets the token alone identify the session.
//
// Every rejection returns [ErrInvalidCredentials]; only a store outage is
// reported as [ErrStoreUnavailable].
func (e *Engine) Refresh(ctx context.Context, userID, refreshToken string) (*SessionResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, userID, refreshToken, e.flows.Refresh)

	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		e.metricInc(MetricRefreshFailure)
		e.loggerFor(ctx).Error().Err(res.Err).Msg("session store unavailable during refresh")
		return nil, storeUnavailable(res.Err)
	case flows.RefreshFailureIssueAccess:
		e.metricInc(MetricRefreshFailure)
		e.loggerFor(ctx).Error().Err(res.Err).Msg("access token mint failed")
		return nil, fmt.Errorf("refresh: %w", res.Err)
	default:
		if res.Failure == flows.RefreshFailureRevoked {
			e.metricInc(MetricRefreshRevoked)
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, ErrInvalidCredentials, reasonMetadata(refreshFailureReason(res.Failure)))
		return nil, ErrInvalidCredentials
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, nil, nil)

	return e.sessionResult(res.Session), nil
}

// Logout deletes the session owning refreshToken. Unknown or already
// deleted tokens are not an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := flows.RunLogout(ctx, refreshToken, e.flows.Logout)
	if res.StoreUnavailable {
		e.metricInc(MetricStoreUnavailable)
		return storeUnavailable(res.Err)
	}
	if res.Err != nil {
		return res.Err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, "", nil, nil)
	return nil
}

// RevokeRefreshToken marks refreshToken, and the session still holding it,
// as revoked. Revoked entries keep their remaining TTL and expire on their
// own; access tokens of a revoked session stop passing the gate at once.
func (e *Engine) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := flows.RunRevokeRefresh(ctx, refreshToken, e.flows.Logout)
	if res.StoreUnavailable {
		e.metricInc(MetricStoreUnavailable)
		return storeUnavailable(res.Err)
	}
	if res.Err != nil {
		return res.Err
	}

	e.metricInc(MetricRefreshRevokeRequested)
	e.emitAudit(ctx, auditEventRefreshRevoked, true, "", nil, nil)
	return nil
}

func (e *Engine) sessionResult(sess *session.Session) *SessionResult {
	expiresIn := sess.AccessExpiresAt - e.now().Unix()
	if expiresIn < 0 {
		expiresIn = 0
	}
	return &SessionResult{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    expiresIn,
		User:         snapshotFromCached(sess.User),
	}
}

func refreshFailureReason(kind flows.RefreshFailureKind) string {
	switch kind {
	case flows.RefreshFailureDecode:
		return "decode"
	case flows.RefreshFailureSubjectMismatch:
		return "subject_mismatch"
	case flows.RefreshFailureSessionNotFound:
		return "session_not_found"
	case flows.RefreshFailureRevoked:
		return "revoked"
	case flows.RefreshFailureMismatch:
		return "stale_token"
	default:
		return "unknown"
	}
}
