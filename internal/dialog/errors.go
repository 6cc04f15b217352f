// ABOUTME: Domain errors returned by the dialog lifecycle manager
// ABOUTME: Callers map these to short user-visible texts with errors.Is

package dialog

import (
	"errors"

	"github.com/2389/handoff-gateway/internal/store"
)

var (
	// ErrDialogNotFound is returned for unknown dialog ids.
	ErrDialogNotFound = errors.New("dialog not found")

	// ErrNotYourDialog is returned when a party acts on a dialog it does not own.
	ErrNotYourDialog = errors.New("dialog belongs to someone else")

	// ErrAlreadyAssigned is returned when another operator won the accept race.
	ErrAlreadyAssigned = errors.New("dialog already accepted by another operator")

	// ErrDialogClosed is returned when mutating a closed dialog.
	ErrDialogClosed = errors.New("dialog is closed")
)

// translate maps store-level errors onto the domain taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrDialogNotFound
	case errors.Is(err, store.ErrOperatorMismatch):
		return ErrAlreadyAssigned
	case errors.Is(err, store.ErrInvalidTransition):
		return ErrDialogClosed
	default:
		return err
	}
}
