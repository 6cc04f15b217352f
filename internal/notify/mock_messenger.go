// ABOUTME: In-memory Messenger that records sends for tests
// ABOUTME: Individual chat ids can be marked unreachable to exercise delivery failures

package notify

import (
	"context"
	"errors"
	"sync"
)

// ErrUnreachable is the cause recorded for chats marked unreachable.
var ErrUnreachable = errors.New("chat unreachable")

// Sent is one recorded send.
type Sent struct {
	ChatID string
	Msg    OutgoingMessage
}

// MockMessenger records every successful send.
type MockMessenger struct {
	mu          sync.Mutex
	sent        []Sent
	unreachable map[string]bool
}

// NewMockMessenger creates an empty MockMessenger.
func NewMockMessenger() *MockMessenger {
	return &MockMessenger{unreachable: make(map[string]bool)}
}

// Send records msg unless chatID is unreachable or ctx is done.
func (m *MockMessenger) Send(ctx context.Context, chatID string, msg OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return &DeliveryError{ChatID: chatID, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unreachable[chatID] {
		return &DeliveryError{ChatID: chatID, Err: ErrUnreachable}
	}
	m.sent = append(m.sent, Sent{ChatID: chatID, Msg: msg})
	return nil
}

// SetUnreachable makes sends to chatID fail.
func (m *MockMessenger) SetUnreachable(chatID string, unreachable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unreachable[chatID] = unreachable
}

// Sent returns a copy of all recorded sends.
func (m *MockMessenger) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sent, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTo returns the messages recorded for chatID.
func (m *MockMessenger) SentTo(chatID string) []OutgoingMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OutgoingMessage
	for _, s := range m.sent {
		if s.ChatID == chatID {
			out = append(out, s.Msg)
		}
	}
	return out
}

// Reset clears the recorded sends.
func (m *MockMessenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
