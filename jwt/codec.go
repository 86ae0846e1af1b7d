package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	// KindAccess marks a short-lived token that authorizes API calls.
	KindAccess Kind = "access"
	// KindRefresh marks a long-lived token that is only accepted by refresh.
	KindRefresh Kind = "refresh"
)

// MinSecretLength is the shortest HMAC secret accepted by [NewCodec].
const MinSecretLength = 32

var (
	// ErrTokenMalformed is returned when the token cannot be parsed or lacks required claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired is returned when the token is past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalidSignature is returned when the signature does not verify.
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	// ErrTokenKindMismatch is returned when a refresh token is presented as access or vice versa.
	ErrTokenKindMismatch = errors.New("token kind mismatch")
)

// Config configures a [Codec].
type Config struct {
	Secret []byte
	Issuer string
	Leeway time.Duration
	// Now overrides the clock used for iat/exp. Nil means time.Now.
	Now func() time.Time
}

// Claims is the claim set carried by every token.
type Claims struct {
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	Kind     Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a single shared secret.
//
// Codec holds no mutable state after construction and is safe for concurrent use.
type Codec struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec validates cfg and returns a ready [Codec].
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("hs256 secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	return &Codec{
		secret: secret,
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    now,
		parser: jwt.NewParser(options...),
	}, nil
}

// Mint signs a new token of the given kind that expires ttl from now.
// Refresh tokens carry only the subject; username and role are dropped.
func (c *Codec) Mint(kind Kind, userID, username, role string, ttl time.Duration) (string, error) {
	if kind != KindAccess && kind != KindRefresh {
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
	if userID == "" {
		return "", errors.New("token subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be > 0")
	}

	now := c.now()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    c.issuer,
		},
	}
	if kind == KindAccess {
		claims.Username = username
		claims.Role = role
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks the signature and expiry of token and returns its claims.
// Errors are one of [ErrTokenMalformed], [ErrTokenExpired] or [ErrTokenInvalidSignature].
func (c *Codec) Verify(token string) (*Claims, error) {
	parsed, err := c.parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrTokenMalformed, claims.Kind)
	}

	return claims, nil
}

// VerifyKind is [Codec.Verify] followed by a check of the typ claim.
func (c *Codec) VerifyKind(token string, kind Kind) (*Claims, error) {
	claims, err := c.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrTokenKindMismatch
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrTokenInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
