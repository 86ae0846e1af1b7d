package directory

import (
	"context"
	"errors"
	"strings"
	"sync"

	goSession "github.com/MrEthical07/goSession"
	"golang.org/x/crypto/bcrypt"
)

type memoryEntry struct {
	user goSession.User
	hash []byte
}

// Memory is an in-process [goSession.UserDirectory] with bcrypt-hashed
// passwords. Lookups match username and email case-insensitively and phone
// numbers exactly.
type Memory struct {
	mu      sync.RWMutex
	cost    int
	entries map[string]*memoryEntry
}

var _ goSession.UserDirectory = (*Memory)(nil)

// NewMemory returns an empty directory hashing with the given bcrypt cost,
// clamped to bcrypt's accepted range. Zero means bcrypt.DefaultCost.
func NewMemory(cost int) *Memory {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Memory{cost: cost, entries: make(map[string]*memoryEntry)}
}

// Add stores user with password, replacing any user with the same id.
func (m *Memory) Add(user goSession.User, password string) error {
	if user.ID == "" || user.Username == "" {
		return errors.New("user id and username are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[user.ID] = &memoryEntry{user: user, hash: hash}
	return nil
}

func (m *Memory) Authenticate(_ context.Context, username, password string) (goSession.AuthenticateResult, error) {
	m.mu.RLock()
	entry := m.lookup(username)
	m.mu.RUnlock()
	if entry == nil {
		return goSession.AuthenticateResult{}, nil
	}

	if err := bcrypt.CompareHashAndPassword(entry.hash, []byte(password)); err != nil {
		return goSession.AuthenticateResult{}, nil
	}
	u := entry.user
	return goSession.AuthenticateResult{Authenticated: true, User: &u}, nil
}

func (m *Memory) FindUser(_ context.Context, identifier string) (*goSession.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry := m.lookup(identifier)
	if entry == nil {
		return nil, goSession.ErrUserNotFound
	}
	u := entry.user
	return &u, nil
}

func (m *Memory) UpdateCredential(_ context.Context, userID, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), m.cost)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[userID]
	if !ok {
		return goSession.ErrUserNotFound
	}
	entry.hash = hash
	entry.user.PasswordChangeRequired = false
	return nil
}

func (m *Memory) lookup(identifier string) *memoryEntry {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil
	}
	for _, entry := range m.entries {
		u := entry.user
		if strings.EqualFold(u.Username, identifier) ||
			(u.Email != "" && strings.EqualFold(u.Email, identifier)) ||
			(u.PhoneNumber != "" && u.PhoneNumber == identifier) {
			return entry
		}
	}
	return nil
}
