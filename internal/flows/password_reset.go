package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal/stores"
)

// PasswordResetFailureKind classifies reset failures for root-level mapping.
type PasswordResetFailureKind int

const (
	PasswordResetFailureNone PasswordResetFailureKind = iota
	PasswordResetFailureRateLimited
	PasswordResetFailureUserNotFound
	PasswordResetFailureDirectoryUnavailable
	PasswordResetFailureGenerate
	PasswordResetFailureStoreUnavailable
	PasswordResetFailureInvalid
	PasswordResetFailureExpired
	PasswordResetFailureCredentialUpdate
	PasswordResetFailureClaimLost
)

type PasswordResetStore interface {
	Save(ctx context.Context, tokenHash string, record *stores.PasswordResetRecord, ttl time.Duration) error
	Claim(ctx context.Context, tokenHash string, now time.Time, lease time.Duration) (*stores.PasswordResetRecord, error)
	MarkUsed(ctx context.Context, tokenHash, claimID string) error
	Release(ctx context.Context, tokenHash, claimID string) error
	Delete(ctx context.Context, tokenHash string) error
}

type PasswordResetLimiter interface {
	AllowResetRequest(ctx context.Context, identifier string) error
}

// PasswordResetDeps captures request and confirm dependencies.
type PasswordResetDeps struct {
	// FindUserID returns "" with a nil error for an unknown identifier.
	FindUserID       func(ctx context.Context, identifier string) (string, error)
	UpdateCredential func(ctx context.Context, userID, newPassword string) error
	// InvalidateSessions is optional; nil keeps existing sessions.
	InvalidateSessions func(ctx context.Context, userID string) error
	NewToken           func() (string, error)
	HashToken          func(string) string
	ValidToken         func(string) error
	Now                func() time.Time
	Store              PasswordResetStore
	Limiter            PasswordResetLimiter
	RateLimited        error
	MaskUnknown        bool
	ResetTTL           time.Duration
	Retention          time.Duration
	// ClaimLease also bounds the UpdateCredential call.
	ClaimLease time.Duration
	Warn       func(string, error)
}

// PasswordResetRequestResult carries the issued token or failure metadata.
// A masked unknown identifier yields a token with an empty UserID that was
// never stored.
type PasswordResetRequestResult struct {
	Failure   PasswordResetFailureKind
	Err       error
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// PasswordResetConfirmResult carries confirm outcome metadata.
type PasswordResetConfirmResult struct {
	Failure PasswordResetFailureKind
	Err     error
	UserID  string
}

// RunRequestPasswordReset resolves identifier and stores a hashed reset token.
func RunRequestPasswordReset(ctx context.Context, identifier string, deps PasswordResetDeps) PasswordResetRequestResult {
	if deps.Limiter != nil {
		if err := deps.Limiter.AllowResetRequest(ctx, identifier); err != nil {
			if errors.Is(err, deps.RateLimited) {
				return PasswordResetRequestResult{Failure: PasswordResetFailureRateLimited, Err: err}
			}
			deps.warn("reset throttle check failed", err)
		}
	}

	userID, err := deps.FindUserID(ctx, identifier)
	if err != nil {
		return PasswordResetRequestResult{Failure: PasswordResetFailureDirectoryUnavailable, Err: err}
	}

	token, err := deps.NewToken()
	if err != nil {
		return PasswordResetRequestResult{Failure: PasswordResetFailureGenerate, Err: err}
	}
	expiresAt := deps.Now().Add(deps.ResetTTL)

	if userID == "" {
		if deps.MaskUnknown {
			return PasswordResetRequestResult{Token: token, ExpiresAt: expiresAt}
		}
		return PasswordResetRequestResult{Failure: PasswordResetFailureUserNotFound}
	}

	record := &stores.PasswordResetRecord{
		UserID:    userID,
		ExpiresAt: expiresAt.Unix(),
	}
	if err := deps.Store.Save(ctx, deps.HashToken(token), record, deps.ResetTTL+deps.Retention); err != nil {
		return PasswordResetRequestResult{Failure: PasswordResetFailureStoreUnavailable, Err: err, UserID: userID}
	}

	return PasswordResetRequestResult{UserID: userID, Token: token, ExpiresAt: expiresAt}
}

// RunConfirmPasswordReset redeems token and updates the credential. The token
// is spent only after the directory accepted the new password; a failed
// update releases the claim so the user can retry. A redemption whose claim
// was taken over while the update ran reports PasswordResetFailureClaimLost.
func RunConfirmPasswordReset(ctx context.Context, token, newPassword string, deps PasswordResetDeps) PasswordResetConfirmResult {
	if deps.ValidToken != nil {
		if err := deps.ValidToken(token); err != nil {
			return PasswordResetConfirmResult{Failure: PasswordResetFailureInvalid, Err: err}
		}
	}
	hash := deps.HashToken(token)

	record, err := deps.Store.Claim(ctx, hash, deps.Now(), deps.ClaimLease)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrResetRedisUnavailable):
			return PasswordResetConfirmResult{Failure: PasswordResetFailureStoreUnavailable, Err: err}
		case errors.Is(err, stores.ErrResetExpired):
			if delErr := deps.Store.Delete(ctx, hash); delErr != nil {
				deps.warn("expired reset record delete failed", delErr)
			}
			return PasswordResetConfirmResult{Failure: PasswordResetFailureExpired, Err: err}
		default:
			return PasswordResetConfirmResult{Failure: PasswordResetFailureInvalid, Err: err}
		}
	}

	if err := deps.updateWithinLease(ctx, record.UserID, newPassword); err != nil {
		if relErr := deps.Store.Release(ctx, hash, record.ClaimID); relErr != nil {
			deps.warn("reset claim release failed", relErr)
		}
		return PasswordResetConfirmResult{Failure: PasswordResetFailureCredentialUpdate, Err: err, UserID: record.UserID}
	}

	if err := deps.Store.MarkUsed(ctx, hash, record.ClaimID); err != nil {
		if errors.Is(err, stores.ErrResetClaimLost) {
			return PasswordResetConfirmResult{Failure: PasswordResetFailureClaimLost, Err: err, UserID: record.UserID}
		}
		deps.warn("reset mark used failed", err)
		if delErr := deps.Store.Delete(ctx, hash); delErr != nil {
			deps.warn("reset record delete failed", delErr)
		}
	}

	if deps.InvalidateSessions != nil {
		if err := deps.InvalidateSessions(ctx, record.UserID); err != nil {
			deps.warn("session invalidation after reset failed", err)
		}
	}

	return PasswordResetConfirmResult{UserID: record.UserID}
}

func (d PasswordResetDeps) updateWithinLease(ctx context.Context, userID, newPassword string) error {
	if d.ClaimLease > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.ClaimLease)
		defer cancel()
	}
	return d.UpdateCredential(ctx, userID, newPassword)
}

func (d PasswordResetDeps) warn(msg string, err error) {
	if d.Warn != nil {
		d.Warn(msg, err)
	}
}
