package session

// CachedUser is the point-in-time user snapshot stored with a session.
// It is not refreshed when the directory record changes.
type CachedUser struct {
	ID                     string
	Username               string
	FirstName              string
	LastName               string
	Role                   string
	PasswordChangeRequired bool
}

// Session is the active session of one user.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	User         CachedUser

	// Unix seconds.
	AccessExpiresAt int64
	ExpiresAt       int64
	CreatedAt       int64

	Revoked bool
}

// RefreshRecord is the refresh-token index entry. Token is populated from
// the key on read and is not part of the encoded value.
type RefreshRecord struct {
	Token     string
	UserID    string
	ExpiresAt int64
	Revoked   bool
}
