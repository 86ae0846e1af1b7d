package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// User is the directory's view of an account. The engine never sees or
// stores password hashes.
type User struct {
	ID                     string
	Username               string
	Email                  string
	PhoneNumber            string
	FirstName              string
	LastName               string
	Role                   string
	PasswordChangeRequired bool
}

// AuthenticateResult is returned by [UserDirectory.Authenticate].
// Authenticated=false with a nil error is a credential rejection.
type AuthenticateResult struct {
	Authenticated bool
	User          *User
}

// UserDirectory is the external system of record for users and credentials.
// Implementations report an unknown user either as [ErrUserNotFound] or as a
// nil user with a nil error; any other error is treated as the directory
// being unreachable.
type UserDirectory interface {
	Authenticate(ctx context.Context, username, password string) (AuthenticateResult, error)
	FindUser(ctx context.Context, identifier string) (*User, error)
	UpdateCredential(ctx context.Context, userID, newPassword string) error
}

// SessionStore is the storage contract the engine needs for sessions.
// [session.Store] is the Redis implementation.
type SessionStore interface {
	Save(ctx context.Context, sess *session.Session) error
	FindByUserID(ctx context.Context, userID string) (*session.Session, error)
	FindByRefreshToken(ctx context.Context, token string) (*session.Session, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	DeleteByRefreshToken(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID string) error
	ReplaceAccessToken(ctx context.Context, userID, refreshToken, accessToken string, accessExpiresAt int64) (*session.Session, error)
	Ping(ctx context.Context) (time.Duration, error)
}

// UserSnapshot is the user portion of a login or refresh response.
type UserSnapshot struct {
	ID                     string `json:"id"`
	Username               string `json:"username"`
	FirstName              string `json:"firstName"`
	LastName               string `json:"lastName"`
	Role                   string `json:"role"`
	PasswordChangeRequired bool   `json:"passwordChangeRequired"`
}

// SessionResult is returned by [Engine.Login] and [Engine.Refresh].
// ExpiresIn is the access token lifetime in seconds.
type SessionResult struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         UserSnapshot `json:"user"`
}

// Identity is the authenticated caller established by [Engine.Validate].
type Identity struct {
	UserID    string
	Username  string
	Role      string
	TokenID   string
	ExpiresAt time.Time
	User      UserSnapshot
}

// PasswordResetToken is returned by [Engine.RequestPasswordReset]. Delivery
// of Token to the user is the caller's responsibility. UserID is empty for
// a masked unknown identifier.
type PasswordResetToken struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func snapshotFromCached(u session.CachedUser) UserSnapshot {
	return UserSnapshot{
		ID:                     u.ID,
		Username:               u.Username,
		FirstName:              u.FirstName,
		LastName:               u.LastName,
		Role:                   u.Role,
		PasswordChangeRequired: u.PasswordChangeRequired,
	}
}

func cachedFromUser(u *User) *session.CachedUser {
	if u == nil {
		return nil
	}
	return &session.CachedUser{
		ID:                     u.ID,
		Username:               u.Username,
		FirstName:              u.FirstName,
		LastName:               u.LastName,
		Role:                   u.Role,
		PasswordChangeRequired: u.PasswordChangeRequired,
	}
}
