// ABOUTME: DialogStore backed by a single JSON document persisted through a ConfigStore
// ABOUTME: Per-dialog and per-user locks serialize read-modify-write cycles

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// ErrDuplicateDialog is returned when inserting a dialog whose id is already taken
var ErrDuplicateDialog = errors.New("dialog already exists")

// saveTimeout bounds a single document write.
const saveTimeout = 5 * time.Second

// DocumentStore keeps the dialogs document in memory and writes it through
// to a ConfigStore after every mutation.
type DocumentStore struct {
	backend ConfigStore
	logger  *slog.Logger

	locks keyedMutex

	mu  sync.RWMutex // guards doc
	doc *Document
}

// NewDocumentStore loads the dialogs document from backend.
// A missing, unreadable or corrupt document starts an empty store.
func NewDocumentStore(ctx context.Context, backend ConfigStore, logger *slog.Logger) *DocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DocumentStore{
		backend: backend,
		logger:  logger.With("component", "dialog-store"),
	}
	s.doc = s.load(ctx)
	return s
}

func (s *DocumentStore) load(ctx context.Context) *Document {
	data, err := s.backend.Load(ctx, DocumentDialogs)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("no dialogs document yet, starting empty")
		return NewDocument()
	}
	if err != nil {
		s.logger.Warn("dialogs document unreadable, starting empty", "error", err)
		return NewDocument()
	}
	doc, err := decodeDocument(data)
	if err != nil {
		s.logger.Warn("dialogs document corrupt, starting empty", "error", err)
		return NewDocument()
	}
	s.logger.Info("dialogs document loaded",
		"dialogs", len(doc.Dialogs),
		"open_users", len(doc.UserActiveDialogs))
	return doc
}

// Close releases the backend.
func (s *DocumentStore) Close() error {
	return s.backend.Close()
}

// GetDialog returns a copy of the dialog or ErrNotFound.
func (s *DocumentStore) GetDialog(ctx context.Context, id string) (*Dialog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.doc.Dialogs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

// UserDialogID returns the raw user index entry.
func (s *DocumentStore) UserDialogID(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.UserActiveDialogs[userID], nil
}

// OperatorDialogIDs returns the raw operator index entries.
func (s *DocumentStore) OperatorDialogIDs(ctx context.Context, operatorID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.doc.OperatorActiveDialogs[operatorID]), nil
}

// ListDialogs returns dialogs with the given status, oldest first.
// An empty status lists every dialog.
func (s *DocumentStore) ListDialogs(ctx context.Context, status DialogStatus) ([]*Dialog, error) {
	s.mu.RLock()
	out := make([]*Dialog, 0)
	for _, d := range s.doc.Dialogs {
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, d.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Dialog) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out, nil
}

// UpdateDialog applies fn to a copy of the dialog under the dialog's lock.
func (s *DocumentStore) UpdateDialog(ctx context.Context, id string, fn func(d *Dialog) error) (*Dialog, error) {
	unlock := s.locks.Lock("dialog:" + id)
	defer unlock()

	s.mu.RLock()
	current, ok := s.doc.Dialogs[id]
	var work *Dialog
	if ok {
		work = current.Clone()
	}
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(work); err != nil {
		return nil, err
	}
	work.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.doc.Dialogs[id]
	restore := s.checkpointLocked(id)
	s.doc.replace(prev, work)
	if err := s.persistLocked(ctx); err != nil {
		restore()
		return nil, err
	}

	s.logger.Debug("dialog updated", "dialog_id", id, "status", work.Status)
	return work.Clone(), nil
}

// CreateForUser inserts the dialog built by fn under the user's lock.
func (s *DocumentStore) CreateForUser(ctx context.Context, userID string, fn func(current *Dialog) (*Dialog, error)) (*Dialog, bool, error) {
	unlock := s.locks.Lock("user:" + userID)
	defer unlock()

	s.mu.RLock()
	var current *Dialog
	if id := s.doc.UserActiveDialogs[userID]; id != "" {
		if d, ok := s.doc.Dialogs[id]; ok {
			current = d.Clone()
		}
	}
	s.mu.RUnlock()

	next, err := fn(current)
	if err != nil {
		return nil, false, err
	}
	if next == nil {
		return current, false, nil
	}
	if next.UserID != userID {
		return nil, false, ErrUserMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.doc.Dialogs[next.ID]; exists {
		return nil, false, fmt.Errorf("%w: %s", ErrDuplicateDialog, next.ID)
	}
	inserted := next.Clone()
	restore := s.checkpointLocked(inserted.ID)
	s.doc.insert(inserted)
	if err := s.persistLocked(ctx); err != nil {
		restore()
		return nil, false, err
	}

	s.logger.Debug("dialog inserted", "dialog_id", inserted.ID, "user_id", userID)
	return inserted.Clone(), true, nil
}

// checkpointLocked captures the record for id and both indexes so a failed
// write can be rolled back. Must be called with mu held.
func (s *DocumentStore) checkpointLocked(id string) func() {
	prev, hadPrev := s.doc.Dialogs[id]
	users := maps.Clone(s.doc.UserActiveDialogs)
	operators := make(map[string][]string, len(s.doc.OperatorActiveDialogs))
	for op, ids := range s.doc.OperatorActiveDialogs {
		operators[op] = slices.Clone(ids)
	}
	return func() {
		if hadPrev {
			s.doc.Dialogs[id] = prev
		} else {
			delete(s.doc.Dialogs, id)
		}
		s.doc.UserActiveDialogs = users
		s.doc.OperatorActiveDialogs = operators
	}
}

// persistLocked writes the whole document. Must be called with mu held.
// The write gets its own timeout so a cancelled request cannot leave the
// in-memory state ahead of the persisted one.
func (s *DocumentStore) persistLocked(ctx context.Context) error {
	data, err := s.doc.encode()
	if err != nil {
		return fmt.Errorf("encoding dialogs document: %w", err)
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if err := s.backend.Save(saveCtx, DocumentDialogs, data); err != nil {
		s.logger.Error("failed to persist dialogs document", "error", err)
		return fmt.Errorf("saving dialogs document: %w", err)
	}
	return nil
}
