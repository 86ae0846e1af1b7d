package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps any Redis failure other than a missing key.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrSessionNotFound is returned when no live session matches the lookup.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned by Save when the session is already past its expiry.
	ErrSessionExpired = errors.New("session already expired")
	// ErrSessionCorrupt is returned when a stored value cannot be decoded.
	ErrSessionCorrupt = errors.New("session corrupt")
	// ErrRefreshRevoked is returned when the refresh token was explicitly revoked.
	ErrRefreshRevoked = errors.New("refresh token revoked")
	// ErrRefreshMismatch is returned when the stored refresh token differs from the supplied one.
	ErrRefreshMismatch = errors.New("refresh token mismatch")
)

const (
	defaultPrefix    = "gs"
	defaultOpTimeout = 2 * time.Second
	maxTxRetries     = 4
)

// Config holds store tuning parameters.
type Config struct {
	Prefix           string
	OperationTimeout time.Duration
	Now              func() time.Time
}

// Store persists sessions in Redis.
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewStore creates a session [Store] backed by the given Redis client.
func NewStore(redisClient redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOpTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		redis:   redisClient,
		prefix:  cfg.Prefix,
		timeout: cfg.OperationTimeout,
		now:     cfg.Now,
	}
}

func (s *Store) sessionKey(userID string) string {
	return s.prefix + ":session:" + userID
}

func (s *Store) refreshKey(token string) string {
	return s.prefix + ":session-by-refresh:" + token
}

func (s *Store) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Save writes sess under its user id and indexes it by refresh token. Any
// previous session of the same user is replaced and its refresh index entry
// removed. Sessions whose expiry is not in the future are never written.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.UserID == "" || sess.RefreshToken == "" {
		return errors.New("session requires user id and refresh token")
	}

	ttl := time.Unix(sess.ExpiresAt, 0).Sub(s.now())
	if ttl <= 0 {
		return ErrSessionExpired
	}

	blob, err := Encode(sess)
	if err != nil {
		return err
	}
	refreshBlob, err := EncodeRefreshRecord(&RefreshRecord{
		UserID:    sess.UserID,
		ExpiresAt: sess.ExpiresAt,
		Revoked:   sess.Revoked,
	})
	if err != nil {
		return err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	key := s.sessionKey(sess.UserID)
	return s.watch(ctx, func(tx *redis.Tx) error {
		var previousRefresh string
		prev, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if old, derr := Decode(prev); derr == nil {
				previousRefresh = old.RefreshToken
			}
		case errors.Is(err, redis.Nil):
		default:
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previousRefresh != "" && previousRefresh != sess.RefreshToken {
				pipe.Del(ctx, s.refreshKey(previousRefresh))
			}
			pipe.Set(ctx, key, blob, ttl)
			pipe.Set(ctx, s.refreshKey(sess.RefreshToken), refreshBlob, ttl)
			return nil
		})
		return err
	}, key)
}

// FindByUserID returns the live session of userID.
func (s *Store) FindByUserID(ctx context.Context, userID string) (*Session, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	return s.getSession(ctx, userID)
}

// FindByRefreshToken resolves a session through the refresh index. A revoked
// record yields [ErrRefreshRevoked]; an index entry whose session has since
// been replaced yields [ErrSessionNotFound].
func (s *Store) FindByRefreshToken(ctx context.Context, token string) (*Session, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	record, err := s.getRefreshRecord(ctx, token)
	if err != nil {
		return nil, err
	}
	if record.Revoked {
		return nil, ErrRefreshRevoked
	}

	sess, err := s.getSession(ctx, record.UserID)
	if err != nil {
		return nil, err
	}
	if !tokensEqual(sess.RefreshToken, token) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// RevokeRefreshToken flags the refresh record, and the session still owning
// it, as revoked. Remaining TTLs are kept so revoked entries expire on their own.
func (s *Store) RevokeRefreshToken(ctx context.Context, token string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	record, err := s.getRefreshRecord(ctx, token)
	if err != nil {
		return err
	}

	refKey := s.refreshKey(token)
	sessKey := s.sessionKey(record.UserID)

	return s.watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, refKey).Bytes()
		if err != nil {
			return err
		}
		current, err := DecodeRefreshRecord(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
		}
		current.Revoked = true
		refreshBlob, err := EncodeRefreshRecord(current)
		if err != nil {
			return err
		}

		var sessionBlob []byte
		raw, err := tx.Get(ctx, sessKey).Bytes()
		switch {
		case err == nil:
			if sess, derr := Decode(raw); derr == nil && tokensEqual(sess.RefreshToken, token) {
				sess.Revoked = true
				if sessionBlob, err = Encode(sess); err != nil {
					return err
				}
			}
		case errors.Is(err, redis.Nil):
		default:
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, refKey, refreshBlob, redis.KeepTTL)
			if sessionBlob != nil {
				pipe.Set(ctx, sessKey, sessionBlob, redis.KeepTTL)
			}
			return nil
		})
		return err
	}, refKey, sessKey)
}

// DeleteByRefreshToken removes the refresh index entry and the session that
// owns it. Deleting an unknown token is not an error.
func (s *Store) DeleteByRefreshToken(ctx context.Context, token string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	record, err := s.getRefreshRecord(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	refKey := s.refreshKey(token)
	sessKey := s.sessionKey(record.UserID)

	return s.watch(ctx, func(tx *redis.Tx) error {
		owned := false
		raw, err := tx.Get(ctx, sessKey).Bytes()
		switch {
		case err == nil:
			sess, derr := Decode(raw)
			owned = derr != nil || tokensEqual(sess.RefreshToken, token)
		case errors.Is(err, redis.Nil):
		default:
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, refKey)
			if owned {
				pipe.Del(ctx, sessKey)
			}
			return nil
		})
		return err
	}, refKey, sessKey)
}

// DeleteByUserID removes the session of userID and its refresh index entry.
func (s *Store) DeleteByUserID(ctx context.Context, userID string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	sessKey := s.sessionKey(userID)
	return s.watch(ctx, func(tx *redis.Tx) error {
		var refreshToken string
		raw, err := tx.Get(ctx, sessKey).Bytes()
		switch {
		case err == nil:
			if sess, derr := Decode(raw); derr == nil {
				refreshToken = sess.RefreshToken
			}
		case errors.Is(err, redis.Nil):
			return nil
		default:
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, sessKey)
			if refreshToken != "" {
				pipe.Del(ctx, s.refreshKey(refreshToken))
			}
			return nil
		})
		return err
	}, sessKey)
}

// ReplaceAccessToken swaps the access token of userID's session, but only
// while that session still holds refreshToken and is not revoked. A login
// that completed in between therefore always wins over a refresh.
func (s *Store) ReplaceAccessToken(
	ctx context.Context,
	userID, refreshToken, accessToken string,
	accessExpiresAt int64,
) (*Session, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	sessKey := s.sessionKey(userID)
	var updated *Session

	err := s.watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, sessKey).Bytes()
		if err != nil {
			return err
		}
		sess, err := Decode(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
		}
		if sess.Revoked {
			return ErrRefreshRevoked
		}
		if !tokensEqual(sess.RefreshToken, refreshToken) {
			return ErrRefreshMismatch
		}

		sess.AccessToken = accessToken
		sess.AccessExpiresAt = accessExpiresAt
		blob, err := Encode(sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessKey, blob, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		updated = sess
		return nil
	}, sessKey)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Ping measures a Redis round trip.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) getSession(ctx context.Context, userID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(userID)).Bytes()
	if err != nil {
		return nil, classify(err)
	}
	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	return sess, nil
}

func (s *Store) getRefreshRecord(ctx context.Context, token string) (*RefreshRecord, error) {
	data, err := s.redis.Get(ctx, s.refreshKey(token)).Bytes()
	if err != nil {
		return nil, classify(err)
	}
	record, err := DecodeRefreshRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	record.Token = token
	return record, nil
}

func (s *Store) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return classify(err)
	}
	return fmt.Errorf("%w: transaction retries exhausted", ErrRedisUnavailable)
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return ErrSessionNotFound
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionCorrupt),
		errors.Is(err, ErrRefreshRevoked),
		errors.Is(err, ErrRefreshMismatch):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
}

func tokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
