// ABOUTME: Store interfaces and sentinel errors for handoff-gateway persistence
// ABOUTME: ConfigStore persists named JSON documents, DialogStore owns dialog records and indexes

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUserMismatch is returned when an insert for one user carries another user's id
var ErrUserMismatch = errors.New("dialog belongs to a different user")

// Document names used with a ConfigStore.
const (
	DocumentDialogs = "dialogs"
	DocumentPhones  = "phones"
)

// ConfigStore loads and saves named JSON documents.
// Load returns ErrNotFound when the document has never been saved.
type ConfigStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	Close() error
}

// DialogStore defines the persistence operations the lifecycle manager needs.
// Every returned *Dialog is a copy; mutating it has no effect on the store.
type DialogStore interface {
	// GetDialog returns the dialog or ErrNotFound.
	GetDialog(ctx context.Context, id string) (*Dialog, error)

	// UserDialogID returns the raw user index entry, "" when absent.
	UserDialogID(ctx context.Context, userID string) (string, error)

	// OperatorDialogIDs returns the raw operator index entries.
	OperatorDialogIDs(ctx context.Context, operatorID string) ([]string, error)

	// ListDialogs scans all dialogs with the given status, oldest first.
	ListDialogs(ctx context.Context, status DialogStatus) ([]*Dialog, error)

	// UpdateDialog runs fn against a copy of the dialog while holding the
	// dialog's lock. If fn returns nil the copy replaces the stored record,
	// indexes are reconciled and the document is persisted before the lock
	// is released. Returns ErrNotFound for unknown ids.
	UpdateDialog(ctx context.Context, id string, fn func(d *Dialog) error) (*Dialog, error)

	// CreateForUser runs fn while holding the user's lock. fn receives the
	// dialog currently referenced by the user index (nil if none) and
	// returns a dialog to insert, or nil to insert nothing. The returned
	// bool reports whether an insert happened; the returned dialog is the
	// inserted one or the current one.
	CreateForUser(ctx context.Context, userID string, fn func(current *Dialog) (*Dialog, error)) (*Dialog, bool, error)
}
