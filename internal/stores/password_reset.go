package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	resetRecordVersionV2 = 2
)

const (
	resetFlagUsed byte = 1 << iota
)

var (
	ErrResetNotFound         = errors.New("reset record not found")
	ErrResetUsed             = errors.New("reset record already used")
	ErrResetClaimed          = errors.New("reset record redemption in progress")
	ErrResetExpired          = errors.New("reset record expired")
	ErrResetClaimLost        = errors.New("reset claim no longer held")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

type PasswordResetRecord struct {
	UserID       string
	ExpiresAt    int64
	Used         bool
	ClaimedUntil int64
	// ClaimID identifies the redemption holding the current claim.
	ClaimID string
}

type PasswordResetStore struct {
	redis   redis.UniversalClient
	prefix  string
	timeout time.Duration
}

func NewPasswordResetStore(redisClient redis.UniversalClient, prefix string, timeout time.Duration) *PasswordResetStore {
	if prefix == "" {
		prefix = "gs"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PasswordResetStore{
		redis:   redisClient,
		prefix:  prefix,
		timeout: timeout,
	}
}

func (s *PasswordResetStore) key(tokenHash string) string {
	return s.prefix + ":reset-token:" + tokenHash
}

func (s *PasswordResetStore) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PasswordResetStore) Save(
	ctx context.Context,
	tokenHash string,
	record *PasswordResetRecord,
	ttl time.Duration,
) error {
	if ttl <= 0 {
		return errors.New("reset record ttl must be > 0")
	}
	encoded, err := encodePasswordResetRecord(record)
	if err != nil {
		return err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, s.key(tokenHash), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	return nil
}

func (s *PasswordResetStore) Get(ctx context.Context, tokenHash string) (*PasswordResetRecord, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	data, err := s.redis.Get(ctx, s.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	return decodePasswordResetRecord(data)
}

// Claim reserves the record for one redemption attempt until now+lease and
// returns it with a fresh ClaimID. The order of checks is fixed: a used or
// concurrently claimed record is reported before expiry.
func (s *PasswordResetStore) Claim(
	ctx context.Context,
	tokenHash string,
	now time.Time,
	lease time.Duration,
) (*PasswordResetRecord, error) {
	var claimed *PasswordResetRecord

	err := s.rewrite(ctx, tokenHash, func(record *PasswordResetRecord) error {
		if record.Used {
			return ErrResetUsed
		}
		if record.ClaimedUntil > now.UnixMilli() {
			return ErrResetClaimed
		}
		if now.Unix() > record.ExpiresAt {
			return ErrResetExpired
		}
		record.ClaimedUntil = now.Add(lease).UnixMilli()
		record.ClaimID = uuid.NewString()
		copied := *record
		claimed = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkUsed spends the record for the redemption holding claimID. It fails
// with [ErrResetClaimLost] once another redemption has claimed or spent the
// record. Further claims fail with [ErrResetUsed].
func (s *PasswordResetStore) MarkUsed(ctx context.Context, tokenHash, claimID string) error {
	return s.rewrite(ctx, tokenHash, func(record *PasswordResetRecord) error {
		if record.Used || claimID == "" || record.ClaimID != claimID {
			return ErrResetClaimLost
		}
		record.Used = true
		record.ClaimedUntil = 0
		record.ClaimID = ""
		return nil
	})
}

// Release drops the claim held by claimID so the token can be redeemed
// again. A claim taken over by another redemption is left alone.
func (s *PasswordResetStore) Release(ctx context.Context, tokenHash, claimID string) error {
	return s.rewrite(ctx, tokenHash, func(record *PasswordResetRecord) error {
		if record.Used || record.ClaimID != claimID {
			return nil
		}
		record.ClaimedUntil = 0
		record.ClaimID = ""
		return nil
	})
}

func (s *PasswordResetStore) Delete(ctx context.Context, tokenHash string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if err := s.redis.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

func (s *PasswordResetStore) rewrite(
	ctx context.Context,
	tokenHash string,
	mutate func(*PasswordResetRecord) error,
) error {
	const maxRetries = 4
	key := s.key(tokenHash)

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodePasswordResetRecord(data)
			if err != nil {
				return err
			}
			if err := mutate(record); err != nil {
				return err
			}

			updated, err := encodePasswordResetRecord(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return ErrResetNotFound
			case errors.Is(err, ErrResetUsed), errors.Is(err, ErrResetClaimed), errors.Is(err, ErrResetExpired), errors.Is(err, ErrResetNotFound),
				errors.Is(err, ErrResetClaimLost):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
			}
		}

		return nil
	}

	return fmt.Errorf("%w: transaction retries exhausted", ErrResetRedisUnavailable)
}

func encodePasswordResetRecord(record *PasswordResetRecord) ([]byte, error) {
	if record == nil {
		return nil, errors.New("nil reset record")
	}

	var buf bytes.Buffer

	buf.WriteByte(resetRecordVersionV2)

	var flags byte
	if record.Used {
		flags |= resetFlagUsed
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ClaimedUntil); err != nil {
		return nil, err
	}

	for _, field := range []string{record.UserID, record.ClaimID} {
		if len(field) > 65535 {
			return nil, errors.New("reset record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodePasswordResetRecord(data []byte) (*PasswordResetRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetRecordVersionV2 {
		return nil, errors.New("invalid reset record version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &PasswordResetRecord{
		Used: flags&resetFlagUsed != 0,
	}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ClaimedUntil); err != nil {
		return nil, err
	}

	if record.UserID, err = readString(reader); err != nil {
		return nil, err
	}
	if record.ClaimID, err = readString(reader); err != nil {
		return nil, err
	}

	return record, nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", err
	}
	return string(b), nil
}
