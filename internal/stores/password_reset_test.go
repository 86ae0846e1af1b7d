package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newResetStoreTest(t *testing.T) (*PasswordResetStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewPasswordResetStore(rdb, "gs", time.Second), mr
}

func seedReset(t *testing.T, s *PasswordResetStore, hash string, now time.Time) {
	t.Helper()
	record := &PasswordResetRecord{UserID: "42", ExpiresAt: now.Add(15 * time.Minute).Unix()}
	if err := s.Save(context.Background(), hash, record, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestClaimMarkUsedSingleUse(t *testing.T) {
	s, _ := newResetStoreTest(t)
	ctx := context.Background()
	now := time.Now()
	seedReset(t, s, "h1", now)

	record, err := s.Claim(ctx, "h1", now, 30*time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if record.UserID != "42" || record.ClaimID == "" {
		t.Fatalf("unexpected claim %+v", record)
	}
	if err := s.MarkUsed(ctx, "h1", record.ClaimID); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	if _, err := s.Claim(ctx, "h1", now, 30*time.Second); !errors.Is(err, ErrResetUsed) {
		t.Fatalf("expected ErrResetUsed, got %v", err)
	}
}

func TestClaimRejectsConcurrentClaim(t *testing.T) {
	s, _ := newResetStoreTest(t)
	ctx := context.Background()
	now := time.Now()
	seedReset(t, s, "h1", now)

	if _, err := s.Claim(ctx, "h1", now, 30*time.Second); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := s.Claim(ctx, "h1", now.Add(time.Second), 30*time.Second); !errors.Is(err, ErrResetClaimed) {
		t.Fatalf("expected ErrResetClaimed, got %v", err)
	}
	if _, err := s.Claim(ctx, "h1", now.Add(time.Minute), 30*time.Second); err != nil {
		t.Fatalf("claim after lease expiry: %v", err)
	}
}

func TestReleaseAllowsRetry(t *testing.T) {
	s, _ := newResetStoreTest(t)
	ctx := context.Background()
	now := time.Now()
	seedReset(t, s, "h1", now)

	record, err := s.Claim(ctx, "h1", now, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.Release(ctx, "h1", record.ClaimID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := s.Claim(ctx, "h1", now, time.Minute); err != nil {
		t.Fatalf("claim after release: %v", err)
	}
}

func TestClaimExpired(t *testing.T) {
	s, _ := newResetStoreTest(t)
	now := time.Now()
	seedReset(t, s, "h1", now)

	if _, err := s.Claim(context.Background(), "h1", now.Add(16*time.Minute), time.Minute); !errors.Is(err, ErrResetExpired) {
		t.Fatalf("expected ErrResetExpired, got %v", err)
	}
}

func TestClaimMissing(t *testing.T) {
	s, _ := newResetStoreTest(t)

	if _, err := s.Claim(context.Background(), "missing", time.Now(), time.Minute); !errors.Is(err, ErrResetNotFound) {
		t.Fatalf("expected ErrResetNotFound, got %v", err)
	}
}

func TestMutationsPreserveTTL(t *testing.T) {
	s, mr := newResetStoreTest(t)
	ctx := context.Background()
	now := time.Now()
	seedReset(t, s, "h1", now)

	mr.FastForward(5 * time.Minute)
	before := mr.TTL("gs:reset-token:h1")

	record, err := s.Claim(ctx, "h1", now, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.MarkUsed(ctx, "h1", record.ClaimID); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if after := mr.TTL("gs:reset-token:h1"); after != before {
		t.Fatalf("ttl changed: before %v after %v", before, after)
	}
}

func TestResetStoreUnavailable(t *testing.T) {
	s, mr := newResetStoreTest(t)
	mr.Close()

	err := s.Save(context.Background(), "h1", &PasswordResetRecord{UserID: "42"}, time.Minute)
	if !errors.Is(err, ErrResetRedisUnavailable) {
		t.Fatalf("expected ErrResetRedisUnavailable, got %v", err)
	}
	if _, err := s.Claim(context.Background(), "h1", time.Now(), time.Minute); !errors.Is(err, ErrResetRedisUnavailable) {
		t.Fatalf("expected ErrResetRedisUnavailable, got %v", err)
	}
}

func TestResetRecordEncoding(t *testing.T) {
	in := &PasswordResetRecord{UserID: "user-1", ExpiresAt: 1700000000, Used: true, ClaimedUntil: 1700000000123}
	data, err := encodePasswordResetRecord(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decodePasswordResetRecord(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *out != *in {
		t.Fatalf("round trip mismatch: %+v vs %+v", in, out)
	}
}

func TestLapsedClaimCannotSpendOrRelease(t *testing.T) {
	s, _ := newResetStoreTest(t)
	ctx := context.Background()
	now := time.Now()
	seedReset(t, s, "h1", now)

	stale, err := s.Claim(ctx, "h1", now, 30*time.Second)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	fresh, err := s.Claim(ctx, "h1", now.Add(31*time.Second), 30*time.Second)
	if err != nil {
		t.Fatalf("claim after lease lapsed: %v", err)
	}
	if fresh.ClaimID == stale.ClaimID {
		t.Fatal("expected a new claim id")
	}

	// The stale holder must not drop the new claim or spend the record.
	if err := s.Release(ctx, "h1", stale.ClaimID); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if _, err := s.Claim(ctx, "h1", now.Add(32*time.Second), 30*time.Second); !errors.Is(err, ErrResetClaimed) {
		t.Fatalf("expected new claim to survive stale release, got %v", err)
	}
	if err := s.MarkUsed(ctx, "h1", stale.ClaimID); !errors.Is(err, ErrResetClaimLost) {
		t.Fatalf("expected ErrResetClaimLost, got %v", err)
	}

	if err := s.MarkUsed(ctx, "h1", fresh.ClaimID); err != nil {
		t.Fatalf("mark used by current holder: %v", err)
	}
	if err := s.MarkUsed(ctx, "h1", fresh.ClaimID); !errors.Is(err, ErrResetClaimLost) {
		t.Fatalf("expected spent record to reject a second spend, got %v", err)
	}
}

func TestRewriteContentionIsUnavailable(t *testing.T) {
	s, _ := newResetStoreTest(t)
	ctx := context.Background()
	seedReset(t, s, "h1", time.Now())

	// Rewriting the watched key from another connection fails every EXEC.
	err := s.rewrite(ctx, "h1", func(*PasswordResetRecord) error {
		raw, err := s.redis.Get(ctx, s.key("h1")).Bytes()
		if err != nil {
			return err
		}
		return s.redis.Set(ctx, s.key("h1"), raw, redis.KeepTTL).Err()
	})
	if !errors.Is(err, ErrResetRedisUnavailable) {
		t.Fatalf("expected ErrResetRedisUnavailable, got %v", err)
	}
	if errors.Is(err, ErrResetClaimed) {
		t.Fatal("contention must not look like an in-flight claim")
	}
}
