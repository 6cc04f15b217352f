// ABOUTME: Guards are ownership checks evaluated under the dialog lock
// ABOUTME: They let callers express who may close or message a dialog without racing the store

package dialog

import (
	"fmt"

	"github.com/2389/handoff-gateway/internal/store"
)

// Guard inspects the current dialog before a mutation is applied.
// A non-nil error aborts the mutation.
type Guard func(d *store.Dialog) error

// Open rejects closed dialogs.
func Open(d *store.Dialog) error {
	if !d.Status.IsOpen() {
		return ErrDialogClosed
	}
	return nil
}

// OwnedByUser allows the mutation only for the dialog's requester.
func OwnedByUser(userID string) Guard {
	return func(d *store.Dialog) error {
		if d.UserID != userID {
			return ErrNotYourDialog
		}
		return nil
	}
}

// ClosableBy allows an operator to close their own active dialog.
// Admins may close any open dialog, including pending ones.
func ClosableBy(operatorID string, admin bool) Guard {
	return func(d *store.Dialog) error {
		if d.Status == store.StatusClosed {
			return ErrDialogClosed
		}
		if admin {
			return nil
		}
		if d.Status != store.StatusActive {
			return fmt.Errorf("%w: dialog is not accepted yet", ErrNotYourDialog)
		}
		if d.OperatorID != operatorID {
			return ErrNotYourDialog
		}
		return nil
	}
}

func runGuards(d *store.Dialog, guards []Guard) error {
	for _, g := range guards {
		if g == nil {
			continue
		}
		if err := g(d); err != nil {
			return err
		}
	}
	return nil
}
