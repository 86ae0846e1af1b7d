package goSession

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goSession/internal/flows"
)

// RequestPasswordReset issues a single-use reset token for the user found by
// identifier (username, email or phone number). Only the token's SHA-256
// digest is stored.
//
// An unknown identifier returns [ErrUserNotFound], or an unstored decoy
// token with an empty UserID when MaskUnknownIdentifier is set.
func (e *Engine) RequestPasswordReset(ctx context.Context, identifier string) (*PasswordResetToken, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	log := e.loggerFor(ctx)

	res := flows.RunRequestPasswordReset(ctx, identifier, e.flows.PasswordReset)

	switch res.Failure {
	case flows.PasswordResetFailureNone:
	case flows.PasswordResetFailureRateLimited:
		e.emitAudit(ctx, auditEventPasswordResetThrottled, false, "", ErrPasswordResetRateLimited, nil)
		return nil, ErrPasswordResetRateLimited
	case flows.PasswordResetFailureUserNotFound:
		log.Info().Msg("password reset requested for unknown identifier")
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", ErrUserNotFound, nil)
		return nil, ErrUserNotFound
	case flows.PasswordResetFailureDirectoryUnavailable:
		e.metricInc(MetricDirectoryUnavailable)
		log.Error().Err(res.Err).Msg("user directory unavailable during reset request")
		e.emitAudit(ctx, auditEventDirectoryUnavailable, false, "", ErrDirectoryUnavailable, reasonMetadata("reset_request"))
		return nil, res.Err
	case flows.PasswordResetFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		log.Error().Err(res.Err).Str("user_id", res.UserID).Msg("reset store unavailable")
		return nil, storeUnavailable(res.Err)
	default:
		log.Error().Err(res.Err).Msg("reset token generation failed")
		return nil, fmt.Errorf("password reset: %w", res.Err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, res.UserID, nil, nil)

	return &PasswordResetToken{
		UserID:    res.UserID,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	}, nil
}

// ResetPassword redeems token and sets newPassword through the directory.
//
// The token is spent only after the directory accepted the update. A failed
// update returns [ErrCredentialUpdateFailed] and leaves the token usable.
// Unknown, spent or in-flight tokens return [ErrResetTokenInvalid]; tokens
// past their expiry return [ErrResetTokenExpired].
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	log := e.loggerFor(ctx)

	res := flows.RunConfirmPasswordReset(ctx, token, newPassword, e.flows.PasswordReset)

	var err error
	switch res.Failure {
	case flows.PasswordResetFailureNone:
	case flows.PasswordResetFailureInvalid:
		err = ErrResetTokenInvalid
	case flows.PasswordResetFailureClaimLost:
		log.Warn().Str("user_id", res.UserID).Msg("reset claim lapsed before the token was spent")
		err = ErrResetTokenInvalid
	case flows.PasswordResetFailureExpired:
		e.metricInc(MetricPasswordResetExpired)
		err = ErrResetTokenExpired
	case flows.PasswordResetFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		log.Error().Err(res.Err).Msg("reset store unavailable")
		err = storeUnavailable(res.Err)
	case flows.PasswordResetFailureCredentialUpdate:
		e.metricInc(MetricDirectoryUnavailable)
		log.Error().Err(res.Err).Str("user_id", res.UserID).Msg("credential update failed, reset token released")
		err = fmt.Errorf("%w: %w", ErrCredentialUpdateFailed, res.Err)
	default:
		err = fmt.Errorf("password reset: %w", res.Err)
	}
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetFailure, false, res.UserID, err, nil)
		return err
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	log.Info().Str("user_id", res.UserID).Msg("password reset completed")
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, res.UserID, nil, nil)
	if e.config.PasswordReset.InvalidateSessionsOnReset {
		e.emitAudit(ctx, auditEventSessionsInvalidated, true, res.UserID, nil, reasonMetadata("password_reset"))
	}
	return nil
}
