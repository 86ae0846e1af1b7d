package goSession

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventLoginRateLimited       = "login_rate_limited"
	auditEventRefreshSuccess         = "refresh_success"
	auditEventRefreshInvalid         = "refresh_invalid"
	auditEventLogout                 = "logout"
	auditEventRefreshRevoked         = "refresh_revoked"
	auditEventGateRejected           = "gate_rejected"
	auditEventPasswordResetRequest   = "password_reset_request"
	auditEventPasswordResetConfirm   = "password_reset_confirm"
	auditEventPasswordResetFailure   = "password_reset_failure"
	auditEventSessionsInvalidated    = "sessions_invalidated"
	auditEventDirectoryUnavailable   = "directory_unavailable"
	auditEventPasswordResetThrottled = "password_reset_rate_limited"
)

// AuditErrorCode is the stable error classification carried by audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials     AuditErrorCode = "invalid_credentials"
	auditErrRateLimited            AuditErrorCode = "rate_limited"
	auditErrInvalidToken           AuditErrorCode = "invalid_token"
	auditErrExpiredToken           AuditErrorCode = "expired_token"
	auditErrSessionRevokedOrAbsent AuditErrorCode = "session_revoked_or_absent"
	auditErrUserNotFound           AuditErrorCode = "user_not_found"
	auditErrPasswordChange         AuditErrorCode = "password_change_required"
	auditErrResetInvalid           AuditErrorCode = "reset_token_invalid"
	auditErrResetExpired           AuditErrorCode = "reset_token_expired"
	auditErrCredentialUpdate       AuditErrorCode = "credential_update_failed"
	auditErrDirectoryUnavailable   AuditErrorCode = "directory_unavailable"
	auditErrUnavailable            AuditErrorCode = "backend_unavailable"
	auditErrInternal               AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		RequestID: RequestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func reasonMetadata(reason string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": reason}
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrPasswordResetRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenInvalidSignature):
		return auditErrInvalidToken
	case errors.Is(err, ErrSessionRevokedOrAbsent):
		return auditErrSessionRevokedOrAbsent
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrPasswordChangeRequired):
		return auditErrPasswordChange
	case errors.Is(err, ErrResetTokenInvalid):
		return auditErrResetInvalid
	case errors.Is(err, ErrResetTokenExpired):
		return auditErrResetExpired
	case errors.Is(err, ErrCredentialUpdateFailed):
		return auditErrCredentialUpdate
	case errors.Is(err, ErrDirectoryUnavailable):
		return auditErrDirectoryUnavailable
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
