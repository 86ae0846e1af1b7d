package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/jwt"
)

var (
	// ErrInvalidCredentials is returned by Login and Refresh for every
	// rejection that is not a store outage.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenMalformed is returned by Validate for tokens that cannot be parsed.
	ErrTokenMalformed = jwt.ErrTokenMalformed
	// ErrTokenExpired is returned by Validate for tokens past their exp claim.
	ErrTokenExpired = jwt.ErrTokenExpired
	// ErrTokenInvalidSignature is returned by Validate for tokens signed with another key.
	ErrTokenInvalidSignature = jwt.ErrTokenInvalidSignature
	// ErrSessionRevokedOrAbsent is returned by Validate when a well-formed token
	// no longer matches a live session.
	ErrSessionRevokedOrAbsent = errors.New("session revoked or absent")
	// ErrResetTokenInvalid is returned for unknown, used or in-flight reset tokens.
	ErrResetTokenInvalid = errors.New("password reset token invalid")
	// ErrResetTokenExpired is returned for reset tokens past their expiry.
	ErrResetTokenExpired = errors.New("password reset token expired")
	// ErrUserNotFound is returned when the directory has no user for an identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreUnavailable is returned when Redis cannot be reached.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrDirectoryUnavailable is returned when the user directory cannot be reached.
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
	// ErrCredentialUpdateFailed wraps the directory error of a failed password update.
	ErrCredentialUpdateFailed = errors.New("credential update failed")
	// ErrPasswordChangeRequired is returned by Login when the user must change
	// their password first and the engine is configured to refuse such logins.
	ErrPasswordChangeRequired = errors.New("password change required")
	// ErrLoginRateLimited is returned when the login throttle is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrPasswordResetRateLimited is returned when the reset request throttle is exhausted.
	ErrPasswordResetRateLimited = errors.New("password reset rate limited")
	// ErrEngineNotReady is returned by methods called on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
