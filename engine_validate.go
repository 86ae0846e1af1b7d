package goSession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/jwt"
)

// Validate checks a bearer access token and its session.
//
// Token failures return [ErrTokenMalformed], [ErrTokenExpired] or
// [ErrTokenInvalidSignature]. A verified token whose session is gone,
// revoked or holds a different access token returns
// [ErrSessionRevokedOrAbsent]. The directory is never consulted.
func (e *Engine) Validate(ctx context.Context, token string) (*Identity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	res := flows.RunValidate(ctx, token, e.flows.Validate)
	if e.metrics != nil {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureToken:
		e.metricInc(MetricGateRejected)
		err := res.Err
		if errors.Is(err, jwt.ErrTokenKindMismatch) {
			err = fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
		e.emitAudit(ctx, auditEventGateRejected, false, "", err, nil)
		return nil, err
	case flows.ValidateFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		e.loggerFor(ctx).Error().Err(res.Err).Msg("session store unavailable during validation")
		return nil, storeUnavailable(res.Err)
	default:
		e.metricInc(MetricGateRejected)
		userID := ""
		if res.Claims != nil {
			userID = res.Claims.Subject
		}
		e.emitAudit(ctx, auditEventGateRejected, false, userID, ErrSessionRevokedOrAbsent, reasonMetadata(validateFailureReason(res.Failure)))
		return nil, ErrSessionRevokedOrAbsent
	}

	e.metricInc(MetricGateAllowed)

	identity := &Identity{
		UserID:   res.Claims.Subject,
		Username: res.Claims.Username,
		Role:     res.Claims.Role,
		TokenID:  res.Claims.ID,
		User:     snapshotFromCached(res.Session.User),
	}
	if res.Claims.ExpiresAt != nil {
		identity.ExpiresAt = res.Claims.ExpiresAt.Time
	}
	return identity, nil
}

func validateFailureReason(kind flows.ValidateFailureKind) string {
	switch kind {
	case flows.ValidateFailureSessionAbsent:
		return "session_absent"
	case flows.ValidateFailureSessionRevoked:
		return "session_revoked"
	case flows.ValidateFailureTokenMismatch:
		return "token_superseded"
	default:
		return "unknown"
	}
}
