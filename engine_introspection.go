package goSession

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// SessionInfo is the safe introspection view of a session. It excludes
// token material.
type SessionInfo struct {
	UserID          string
	Username        string
	Role            string
	CreatedAt       time.Time
	AccessExpiresAt time.Time
	ExpiresAt       time.Time
	Revoked         bool
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

// GetSessionInfo returns the stored session of userID, or
// [ErrSessionRevokedOrAbsent] when there is none.
func (e *Engine) GetSessionInfo(ctx context.Context, userID string) (*SessionInfo, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUserNotFound
	}

	sess, err := e.sessionStore.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, ErrSessionRevokedOrAbsent
		}
		e.metricInc(MetricStoreUnavailable)
		return nil, storeUnavailable(err)
	}

	info := toSessionInfo(sess)
	return &info, nil
}

// Health pings the session store and reports its latency.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.sessionStore == nil {
		return HealthStatus{}
	}

	latency, err := e.sessionStore.Ping(ctx)
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   latency,
	}
}

// GetLoginAttempts returns the failed login count of username inside the
// current throttle window. It is 0 when the throttle is disabled.
func (e *Engine) GetLoginAttempts(ctx context.Context, username string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	if e.rateLimiter == nil || !e.config.Security.EnableLoginThrottle || username == "" {
		return 0, nil
	}

	n, err := e.rateLimiter.GetLoginAttempts(ctx, username)
	if err != nil {
		return 0, storeUnavailable(err)
	}
	return n, nil
}

func toSessionInfo(sess *session.Session) SessionInfo {
	return SessionInfo{
		UserID:          sess.UserID,
		Username:        sess.User.Username,
		Role:            sess.User.Role,
		CreatedAt:       time.Unix(sess.CreatedAt, 0),
		AccessExpiresAt: time.Unix(sess.AccessExpiresAt, 0),
		ExpiresAt:       time.Unix(sess.ExpiresAt, 0),
		Revoked:         sess.Revoked,
	}
}
