// Package session maps opaque session tokens to user identities.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultTTL = 24 * time.Hour

type Identity struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// Store is the session backend. Lookup of an unknown or expired token reports
// ok == false with a nil error.
type Store interface {
	Create(ctx context.Context, id Identity) (token string, err error)
	Lookup(ctx context.Context, token string) (id Identity, ok bool, err error)
	Delete(ctx context.Context, token string) error
}

func newToken() string { return uuid.NewString() }

type entry struct {
	id      Identity
	expires time.Time
}

// Memory keeps sessions in process. Expired entries are invisible to Lookup
// and reclaimed by Sweep.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]entry
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, sessions: make(map[string]entry)}
}

func (m *Memory) Create(_ context.Context, id Identity) (string, error) {
	tok := newToken()
	m.mu.Lock()
	m.sessions[tok] = entry{id: id, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return tok, nil
}

func (m *Memory) Lookup(_ context.Context, token string) (Identity, bool, error) {
	m.mu.RLock()
	e, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expires) {
		return Identity{}, false, nil
	}
	return e.id, true, nil
}

func (m *Memory) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}

// Sweep drops expired sessions and reports how many went.
func (m *Memory) Sweep(context.Context) (int, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for tok, e := range m.sessions {
		if !now.Before(e.expires) {
			delete(m.sessions, tok)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
