package goSession

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type directoryEntry struct {
	user     User
	password string
}

// fakeDirectory is an in-memory UserDirectory with call counters and
// injectable failures.
type fakeDirectory struct {
	mu        sync.Mutex
	entries   map[string]*directoryEntry
	authErr   error
	findErr   error
	updateErr error
	// afterUpdate runs once, outside the lock, after a successful update.
	afterUpdate func(ctx context.Context)

	authCalls   int
	findCalls   int
	updateCalls int
}

func newFakeDirectory() *fakeDirectory {
	d := &fakeDirectory{entries: map[string]*directoryEntry{}}
	d.add(User{ID: "42", Username: "alice", Email: "alice@example.com", FirstName: "Alice", LastName: "Liddell", Role: "USER"}, "correct-pw")
	return d
}

func (d *fakeDirectory) add(u User, password string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[u.Username] = &directoryEntry{user: u, password: password}
}

func (d *fakeDirectory) Authenticate(_ context.Context, username, password string) (AuthenticateResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.authCalls++
	if d.authErr != nil {
		return AuthenticateResult{}, d.authErr
	}
	entry, ok := d.entries[username]
	if !ok || entry.password != password {
		return AuthenticateResult{}, nil
	}
	u := entry.user
	return AuthenticateResult{Authenticated: true, User: &u}, nil
}

func (d *fakeDirectory) FindUser(_ context.Context, identifier string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.findCalls++
	if d.findErr != nil {
		return nil, d.findErr
	}
	for _, entry := range d.entries {
		u := entry.user
		if strings.EqualFold(u.Username, identifier) || strings.EqualFold(u.Email, identifier) || (u.PhoneNumber != "" && u.PhoneNumber == identifier) {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (d *fakeDirectory) UpdateCredential(ctx context.Context, userID, newPassword string) error {
	d.mu.Lock()
	d.updateCalls++
	if d.updateErr != nil {
		d.mu.Unlock()
		return d.updateErr
	}
	var found bool
	for _, entry := range d.entries {
		if entry.user.ID == userID {
			entry.password = newPassword
			found = true
		}
	}
	hook := d.afterUpdate
	d.afterUpdate = nil
	d.mu.Unlock()

	if !found {
		return errors.New("no such user")
	}
	if hook != nil {
		hook(ctx)
	}
	return nil
}

func (d *fakeDirectory) setAfterUpdate(fn func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.afterUpdate = fn
}

func (d *fakeDirectory) updates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updateCalls
}

func (d *fakeDirectory) setAuthErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.authErr = err
}

func (d *fakeDirectory) setFindErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.findErr = err
}

func (d *fakeDirectory) setUpdateErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updateErr = err
}

func (d *fakeDirectory) passwordOf(username string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.entries[username]; ok {
		return entry.password
	}
	return ""
}

func (d *fakeDirectory) resetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.authCalls, d.findCalls, d.updateCalls = 0, 0, 0
}

func (d *fakeDirectory) totalCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.authCalls + d.findCalls + d.updateCalls
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEngineOptions struct {
	mutate    func(*Config)
	clock     *testClock
	auditSink AuditSink
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	return mr, client
}

func newTestEngine(t testing.TB, mutate func(*Config)) (*Engine, *fakeDirectory, *miniredis.Miniredis) {
	t.Helper()
	return newTestEngineWith(t, testEngineOptions{mutate: mutate})
}

func newTestEngineWith(t testing.TB, opts testEngineOptions) (*Engine, *fakeDirectory, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	dir := newFakeDirectory()

	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte(testSecret)
	if opts.mutate != nil {
		opts.mutate(&cfg)
	}

	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserDirectory(dir)
	if opts.clock != nil {
		builder = builder.WithClock(opts.clock.Now)
	}
	if opts.auditSink != nil {
		builder = builder.WithAuditSink(opts.auditSink)
	}

	engine, err := builder.Build()
	if err != nil {
		rdb.Close()
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	})
	return engine, dir, mr
}

func mustLogin(t *testing.T, e *Engine) *SessionResult {
	t.Helper()
	res, err := e.Login(context.Background(), "alice", "correct-pw")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return res
}
