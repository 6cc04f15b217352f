// ABOUTME: Manager creates, accepts, messages and closes dialogs on top of a DialogStore
// ABOUTME: It returns outcomes and never talks to the chat platform itself

package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/handoff-gateway/internal/store"
)

// errUnchanged aborts an UpdateDialog cycle that has nothing to write.
var errUnchanged = errors.New("unchanged")

// Requester is the identity snapshot taken when a dialog is created.
type Requester struct {
	UserID    string
	UserName  string
	UserPhone string
	Username  string
}

// Outcome is the result of a mutation. Changed reports whether the call
// created or transitioned the dialog, as opposed to returning it as it was.
type Outcome struct {
	Dialog  *store.Dialog
	Changed bool
}

// Manager enforces the dialog lifecycle.
type Manager struct {
	store  store.DialogStore
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// New creates a Manager backed by s.
func New(s store.DialogStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  s,
		logger: logger.With("component", "dialog"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

// CreateOrResume returns the user's open dialog if there is one, otherwise
// inserts a new pending dialog. Outcome.Changed is true only on creation.
func (m *Manager) CreateOrResume(ctx context.Context, req Requester, buttonPath []string) (Outcome, error) {
	if req.UserID == "" {
		return Outcome{}, fmt.Errorf("user id is required")
	}

	d, created, err := m.store.CreateForUser(ctx, req.UserID, func(current *store.Dialog) (*store.Dialog, error) {
		if current != nil && current.Status.IsOpen() {
			return nil, nil
		}
		return store.NewDialog(m.newID(), req.UserID, req.UserName, req.UserPhone, req.Username, buttonPath, m.now()), nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("creating dialog: %w", err)
	}

	if created {
		m.logger.Info("dialog created",
			"dialog_id", d.ID,
			"user_id", d.UserID,
			"button_path", d.ButtonPath)
	} else {
		m.logger.Debug("dialog resumed", "dialog_id", d.ID, "user_id", d.UserID)
	}
	return Outcome{Dialog: d, Changed: created}, nil
}

// Accept assigns a pending dialog to operatorID. Accepting a dialog that is
// already active for the same operator succeeds without changes.
func (m *Manager) Accept(ctx context.Context, id, operatorID string) (Outcome, error) {
	if operatorID == "" {
		return Outcome{}, fmt.Errorf("operator id is required")
	}

	d, err := m.store.UpdateDialog(ctx, id, func(d *store.Dialog) error {
		changed, err := d.Accept(operatorID, m.now())
		if err != nil {
			return err
		}
		if !changed {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return m.unchanged(ctx, id)
	}
	if err != nil {
		return Outcome{}, translate(err)
	}

	m.logger.Info("dialog accepted", "dialog_id", id, "operator_id", operatorID)
	return Outcome{Dialog: d, Changed: true}, nil
}

// AppendMessage adds a message to the transcript. Status is not checked
// here: messages may queue on a pending dialog, and callers that must not
// append to closed dialogs pass the Open guard.
func (m *Manager) AppendMessage(ctx context.Context, id string, sender store.Sender, text string, guards ...Guard) (*store.Dialog, error) {
	if sender != store.SenderUser && sender != store.SenderOperator {
		return nil, fmt.Errorf("unknown sender %q", sender)
	}

	d, err := m.store.UpdateDialog(ctx, id, func(d *store.Dialog) error {
		if err := runGuards(d, guards); err != nil {
			return err
		}
		d.Append(sender, text, m.now())
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	m.logger.Debug("message appended",
		"dialog_id", id,
		"sender", sender,
		"messages", len(d.Messages))
	return d, nil
}

// Reply records an operator message in one critical section: a pending
// dialog is accepted for the operator first, an active dialog must belong to
// the operator unless override is set. Outcome.Changed reports whether the
// reply also accepted the dialog.
func (m *Manager) Reply(ctx context.Context, id, operatorID string, override bool, text string) (Outcome, error) {
	var accepted bool
	d, err := m.store.UpdateDialog(ctx, id, func(d *store.Dialog) error {
		now := m.now()
		switch d.Status {
		case store.StatusClosed:
			return ErrDialogClosed
		case store.StatusPending:
			if _, err := d.Accept(operatorID, now); err != nil {
				return err
			}
			accepted = true
		case store.StatusActive:
			if d.OperatorID != operatorID && !override {
				return ErrNotYourDialog
			}
		}
		d.Append(store.SenderOperator, text, now)
		return nil
	})
	if err != nil {
		return Outcome{}, translate(err)
	}

	if accepted {
		m.logger.Info("dialog accepted by reply", "dialog_id", id, "operator_id", operatorID)
	}
	m.logger.Debug("operator reply recorded", "dialog_id", id, "operator_id", operatorID)
	return Outcome{Dialog: d, Changed: accepted}, nil
}

// Close moves an open dialog to closed and drops it from both indexes.
// Guards run under the dialog lock before the transition.
func (m *Manager) Close(ctx context.Context, id string, guards ...Guard) (*store.Dialog, error) {
	d, err := m.store.UpdateDialog(ctx, id, func(d *store.Dialog) error {
		if err := runGuards(d, guards); err != nil {
			return err
		}
		return d.Close(m.now())
	})
	if err != nil {
		return nil, translate(err)
	}

	m.logger.Info("dialog closed",
		"dialog_id", id,
		"user_id", d.UserID,
		"operator_id", d.OperatorID,
		"messages", len(d.Messages))
	return d, nil
}

// GetDialog returns a copy of the dialog.
func (m *Manager) GetDialog(ctx context.Context, id string) (*store.Dialog, error) {
	d, err := m.store.GetDialog(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return d, nil
}

// GetUserActiveDialog returns the user's open dialog. The index entry is
// trusted only if the record it points to is still open.
func (m *Manager) GetUserActiveDialog(ctx context.Context, userID string) (*store.Dialog, bool, error) {
	id, err := m.store.UserDialogID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, nil
	}

	d, err := m.store.GetDialog(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		m.logger.Warn("user index points at missing dialog", "user_id", userID, "dialog_id", id)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !d.Status.IsOpen() {
		return nil, false, nil
	}
	return d, true, nil
}

// GetActiveDialogsForOperator returns the operator's live active dialogs,
// skipping index entries that no longer match their record.
func (m *Manager) GetActiveDialogsForOperator(ctx context.Context, operatorID string) ([]*store.Dialog, error) {
	ids, err := m.store.OperatorDialogIDs(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	out := make([]*store.Dialog, 0, len(ids))
	for _, id := range ids {
		d, err := m.store.GetDialog(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !d.AssignedTo(operatorID) {
			m.logger.Warn("stale operator index entry", "operator_id", operatorID, "dialog_id", id, "status", d.Status)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// GetPendingDialogs scans the store for unclaimed dialogs, oldest first.
func (m *Manager) GetPendingDialogs(ctx context.Context) ([]*store.Dialog, error) {
	return m.store.ListDialogs(ctx, store.StatusPending)
}

// ListDialogs returns dialogs in the given status, or every dialog for "".
func (m *Manager) ListDialogs(ctx context.Context, status store.DialogStatus) ([]*store.Dialog, error) {
	return m.store.ListDialogs(ctx, status)
}

func (m *Manager) unchanged(ctx context.Context, id string) (Outcome, error) {
	d, err := m.GetDialog(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Dialog: d}, nil
}
