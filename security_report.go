package goSession

import "time"

// SecurityReport summarizes the effective security posture of an engine.
// It never includes key material.
type SecurityReport struct {
	SigningAlgorithm           string
	AccessTTL                  time.Duration
	RefreshTTL                 time.Duration
	Leeway                     time.Duration
	RefreshRotationEnabled     bool
	SingleSessionPerUser       bool
	LoginThrottleActive        bool
	IPThrottleActive           bool
	ResetRequestThrottleActive bool
	ResetTTL                   time.Duration
	MaskUnknownIdentifier      bool
	InvalidateSessionsOnReset  bool
	RejectPasswordChange       bool
	AuditEnabled               bool
	PublicPathPrefixes         []string
}

// SecurityReport returns the posture derived from the engine's config.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	loginThrottle := e.config.Security.EnableLoginThrottle &&
		e.config.Security.MaxLoginAttempts > 0 &&
		e.config.Security.LoginCooldownDuration > 0

	return SecurityReport{
		SigningAlgorithm:           "HS256",
		AccessTTL:                  e.config.JWT.AccessTTL,
		RefreshTTL:                 e.config.JWT.RefreshTTL,
		Leeway:                     e.config.JWT.Leeway,
		RefreshRotationEnabled:     false,
		SingleSessionPerUser:       true,
		LoginThrottleActive:        loginThrottle,
		IPThrottleActive:           loginThrottle && e.config.Security.EnableIPThrottle,
		ResetRequestThrottleActive: e.config.PasswordReset.EnableRequestThrottle && e.config.PasswordReset.MaxRequests > 0,
		ResetTTL:                   e.config.PasswordReset.ResetTTL,
		MaskUnknownIdentifier:      e.config.PasswordReset.MaskUnknownIdentifier,
		InvalidateSessionsOnReset:  e.config.PasswordReset.InvalidateSessionsOnReset,
		RejectPasswordChange:       e.config.Login.RejectPasswordChangeRequired,
		AuditEnabled:               e.config.Audit.Enabled,
		PublicPathPrefixes:         e.PublicPathPrefixes(),
	}
}
