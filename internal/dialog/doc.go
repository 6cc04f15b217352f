// Package dialog implements the lifecycle of support dialogs between end
// users and operators.
//
// # States
//
//	pending ──accept──▶ active ──close──▶ closed
//	   └────────────close────────────────▶
//
// Closed is terminal. A user who wants to talk again gets a fresh dialog
// from CreateOrResume.
//
// # Manager
//
// Every operation is a single read-modify-write against a store.DialogStore,
// so the check-then-set in Accept is atomic per dialog and CreateOrResume is
// atomic per user:
//
//   - CreateOrResume(ctx, requester, buttonPath): open dialog or a new pending one
//   - Accept(ctx, id, operatorID): first accept wins, retries by the winner succeed
//   - AppendMessage(ctx, id, sender, text): append to the transcript
//   - Reply(ctx, id, operatorID, override, text): auto-accept, ownership check and append
//   - Close(ctx, id, guards...): terminal transition, guards run under the lock
//
// The Manager does not send anything. Callers inspect the returned Outcome
// and notify participants after the store lock has been released.
//
// # Errors
//
// ErrDialogNotFound, ErrNotYourDialog, ErrAlreadyAssigned and ErrDialogClosed
// are meant for errors.Is checks and short user-facing messages.
package dialog
