// ABOUTME: PhoneBook keeps the phone number each user shared before using the menu
// ABOUTME: Persisted as the "phones" document keyed by user id

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Contact is what a user shared when asked for a phone number.
type Contact struct {
	Phone     string    `json:"phone"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Username  string    `json:"username,omitempty"`
	SavedAt   time.Time `json:"saved_at"`
}

// PhoneBook maps user ids to their shared contact.
type PhoneBook struct {
	backend ConfigStore
	logger  *slog.Logger

	mu       sync.RWMutex
	contacts map[string]Contact
}

// NewPhoneBook loads the phones document. A missing or corrupt document
// starts empty.
func NewPhoneBook(ctx context.Context, backend ConfigStore, logger *slog.Logger) *PhoneBook {
	if logger == nil {
		logger = slog.Default()
	}
	p := &PhoneBook{
		backend:  backend,
		logger:   logger.With("component", "phonebook"),
		contacts: make(map[string]Contact),
	}

	data, err := backend.Load(ctx, DocumentPhones)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		p.logger.Warn("phones document unreadable, starting empty", "error", err)
	default:
		if err := json.Unmarshal(data, &p.contacts); err != nil {
			p.logger.Warn("phones document corrupt, starting empty", "error", err)
			p.contacts = make(map[string]Contact)
		}
		if p.contacts == nil {
			p.contacts = make(map[string]Contact)
		}
	}
	return p
}

// Get returns the stored contact for userID.
func (p *PhoneBook) Get(userID string) (Contact, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.contacts[userID]
	return c, ok && c.Phone != ""
}

// Set stores a contact and persists the document.
func (p *PhoneBook) Set(ctx context.Context, userID string, c Contact) error {
	if c.Phone == "" {
		return fmt.Errorf("phone is required")
	}
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now().UTC()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prev, hadPrev := p.contacts[userID]
	p.contacts[userID] = c

	data, err := json.MarshalIndent(p.contacts, "", "  ")
	if err == nil {
		err = p.backend.Save(ctx, DocumentPhones, data)
	}
	if err != nil {
		if hadPrev {
			p.contacts[userID] = prev
		} else {
			delete(p.contacts, userID)
		}
		return fmt.Errorf("saving phones document: %w", err)
	}

	p.logger.Debug("contact saved", "user_id", userID)
	return nil
}
