package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	store := NewStore(rdb, Config{Prefix: "gs", OperationTimeout: time.Second})
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func testSession(userID, access, refresh string) *Session {
	now := time.Now()
	return &Session{
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: refresh,
		User: CachedUser{
			ID:        userID,
			Username:  "alice",
			FirstName: "Alice",
			LastName:  "Liddell",
			Role:      "USER",
		},
		AccessExpiresAt: now.Add(15 * time.Minute).Unix(),
		ExpiresAt:       now.Add(time.Hour).Unix(),
		CreatedAt:       now.Unix(),
	}
}

func TestSaveAndFindByUserID(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession("42", "access-1", "refresh-1")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.FindByUserID(ctx, "42")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.AccessToken != "access-1" || got.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.User.Username != "alice" || got.User.Role != "USER" {
		t.Fatalf("unexpected cached user: %+v", got.User)
	}

	if ttl := mr.TTL("gs:session:42"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected session ttl %v", ttl)
	}
	if ttl := mr.TTL("gs:session-by-refresh:refresh-1"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected refresh index ttl %v", ttl)
	}
}

func TestSaveSkipsExpiredSession(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()

	sess := testSession("42", "a", "r")
	sess.ExpiresAt = time.Now().Add(-time.Second).Unix()

	if err := store.Save(context.Background(), sess); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if mr.Exists("gs:session:42") {
		t.Fatal("expired session must not be persisted")
	}
}

func TestSaveSupersedesPreviousSession(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testSession("42", "access-1", "refresh-1")); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.Save(ctx, testSession("42", "access-2", "refresh-2")); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := store.FindByUserID(ctx, "42")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.AccessToken != "access-2" {
		t.Fatalf("expected last write to win, got %q", got.AccessToken)
	}
	if mr.Exists("gs:session-by-refresh:refresh-1") {
		t.Fatal("superseded refresh index entry should be removed")
	}
	if _, err := store.FindByRefreshToken(ctx, "refresh-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected superseded refresh token to be not found, got %v", err)
	}
}

func TestFindByRefreshToken(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testSession("42", "access-1", "refresh-1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.FindByRefreshToken(ctx, "refresh-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.UserID != "42" {
		t.Fatalf("unexpected user %q", got.UserID)
	}

	if _, err := store.FindByRefreshToken(ctx, "unknown"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRevokeRefreshTokenPreservesTTL(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testSession("42", "access-1", "refresh-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(10 * time.Minute)
	before := mr.TTL("gs:session-by-refresh:refresh-1")

	if err := store.RevokeRefreshToken(ctx, "refresh-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if after := mr.TTL("gs:session-by-refresh:refresh-1"); after != before {
		t.Fatalf("revoke changed refresh ttl: before %v after %v", before, after)
	}
	if _, err := store.FindByRefreshToken(ctx, "refresh-1"); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("expected ErrRefreshRevoked, got %v", err)
	}

	sess, err := store.FindByUserID(ctx, "42")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !sess.Revoked {
		t.Fatal("expected owning session to be flagged revoked")
	}

	mr.FastForward(time.Hour)
	if _, err := store.FindByRefreshToken(ctx, "refresh-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected revoked record to expire, got %v", err)
	}
}

func TestRevokeUnknownRefreshToken(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()

	if err := store.RevokeRefreshToken(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteByRefreshTokenIdempotent(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testSession("42", "access-1", "refresh-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.DeleteByRefreshToken(ctx, "refresh-1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.DeleteByRefreshToken(ctx, "refresh-1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if mr.Exists("gs:session:42") || mr.Exists("gs:session-by-refresh:refresh-1") {
		t.Fatal("expected both keys to be removed")
	}
}

func TestDeleteStaleRefreshKeepsNewerSession(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testSession("42", "access-1", "refresh-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Simulate an index entry left behind by an older login.
	stale, err := EncodeRefreshRecord(&RefreshRecord{UserID: "42", ExpiresAt: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := mr.Set("gs:session-by-refresh:refresh-0", string(stale)); err != nil {
		t.Fatalf("seed stale record: %v", err)
	}

	if err := store.DeleteByRefreshToken(ctx, "refresh-0"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !mr.Exists("gs:session:42") {
		t.Fatal("deleting a stale refresh token must not remove the current session")
	}
}

func TestDeleteByUserID(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testSession("42", "access-1", "refresh-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.DeleteByUserID(ctx, "42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("gs:session:42") || mr.Exists("gs:session-by-refresh:refresh-1") {
		t.Fatal("expected session and index to be removed")
	}
	if err := store.DeleteByUserID(ctx, "42"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestReplaceAccessToken(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testSession("42", "access-1", "refresh-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	before := mr.TTL("gs:session:42")

	updated, err := store.ReplaceAccessToken(ctx, "42", "refresh-1", "access-2", time.Now().Add(time.Minute).Unix())
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if updated.AccessToken != "access-2" || updated.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected session: %+v", updated)
	}
	if after := mr.TTL("gs:session:42"); after != before {
		t.Fatalf("replace changed ttl: before %v after %v", before, after)
	}

	if _, err := store.ReplaceAccessToken(ctx, "42", "refresh-x", "access-3", 0); !errors.Is(err, ErrRefreshMismatch) {
		t.Fatalf("expected ErrRefreshMismatch, got %v", err)
	}
	if _, err := store.ReplaceAccessToken(ctx, "7", "refresh-1", "access-3", 0); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestConcurrentSavesLastWriteWins(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := string(rune('a' + i))
			_ = store.Save(ctx, testSession("42", "access-"+token, "refresh-"+token))
		}(i)
	}
	wg.Wait()

	sess, err := store.FindByUserID(ctx, "42")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if _, err := store.FindByRefreshToken(ctx, sess.RefreshToken); err != nil {
		t.Fatalf("winning session must be reachable through its refresh token: %v", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	mr.Close()

	ctx := context.Background()
	if err := store.Save(ctx, testSession("42", "a", "r")); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("save: expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.FindByUserID(ctx, "42"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("find: expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Ping(ctx); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("ping: expected ErrRedisUnavailable, got %v", err)
	}
}
