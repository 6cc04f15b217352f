// ABOUTME: Per-chat conversation state owned by the front-ends
// ABOUTME: Tracks whether a chat is browsing the menu, in a dialog or replying to one

package session

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Mode is what the next plain text message from a chat means.
type Mode string

const (
	ModeMenu          Mode = "menu"           // browsing, text is not dialog traffic
	ModeAwaitingPhone Mode = "awaiting_phone" // waiting for a shared contact
	ModeInDialog      Mode = "in_dialog"      // user side of an open dialog
	ModeReplying      Mode = "replying"       // operator composing replies to DialogID
)

// Session is the state kept for one chat.
type Session struct {
	Mode       Mode      `json:"mode"`
	DialogID   string    `json:"dialog_id,omitempty"`
	ButtonPath []string  `json:"button_path,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store keeps sessions keyed by chat id. Get on an unknown chat returns a
// zero Session in ModeMenu.
type Store interface {
	Get(ctx context.Context, chatID string) (Session, error)
	Put(ctx context.Context, chatID string, s Session) error
	Delete(ctx context.Context, chatID string) error
}

func fresh() Session {
	return Session{Mode: ModeMenu}
}

// MemoryStore keeps sessions in process memory. Sessions idle for longer
// than the TTL are treated as absent.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a MemoryStore. A zero ttl keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the chat's session.
func (m *MemoryStore) Get(ctx context.Context, chatID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return fresh(), nil
	}
	if m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl {
		delete(m.sessions, chatID)
		return fresh(), nil
	}
	s.ButtonPath = slices.Clone(s.ButtonPath)
	return s, nil
}

// Put replaces the chat's session.
func (m *MemoryStore) Put(ctx context.Context, chatID string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Mode == "" {
		s.Mode = ModeMenu
	}
	s.ButtonPath = slices.Clone(s.ButtonPath)
	s.UpdatedAt = m.now()
	m.sessions[chatID] = s
	return nil
}

// Delete forgets the chat's session.
func (m *MemoryStore) Delete(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}
