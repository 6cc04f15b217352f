// ABOUTME: Operator-side flows: accept, reply, close and the dialog list
// ABOUTME: Ownership is checked by the manager under the dialog lock

package router

import (
	"context"
	"errors"

	"github.com/2389/handoff-gateway/internal/dialog"
	"github.com/2389/handoff-gateway/internal/session"
	"github.com/2389/handoff-gateway/internal/store"
)

// AcceptDialog claims a pending dialog for the operator.
func (r *Router) AcceptDialog(ctx context.Context, p Principal, id string) error {
	if !r.staff.IsStaff(p.ID) {
		return r.reportError(ctx, p.ID, "accepting dialog", ErrNoAccess)
	}

	out, err := r.manager.Accept(ctx, id, p.ID)
	if err != nil {
		return r.reportError(ctx, p.ID, "accepting dialog", err)
	}
	if out.Changed {
		r.metrics.DialogAccepted()
	}
	return r.send(ctx, p.ID, acceptedCard(out.Dialog))
}

// StartReply puts the operator into replying mode for a dialog. A pending
// dialog is accepted on the way; admins may reply in any open dialog.
func (r *Router) StartReply(ctx context.Context, p Principal, id string) error {
	if !r.staff.IsStaff(p.ID) {
		return r.reportError(ctx, p.ID, "starting reply", ErrNoAccess)
	}
	admin := r.staff.IsAdmin(p.ID)

	sess, err := r.sessions.Get(ctx, p.ID)
	if err != nil {
		return r.internalError(ctx, p.ID, "starting reply", err)
	}
	if sess.Mode == session.ModeReplying && sess.DialogID == id {
		return r.send(ctx, p.ID, alreadyReplying())
	}

	d, err := r.manager.GetDialog(ctx, id)
	if err != nil {
		return r.reportError(ctx, p.ID, "starting reply", err)
	}
	if !d.Status.IsOpen() {
		return r.reportError(ctx, p.ID, "starting reply", dialog.ErrDialogNotFound)
	}

	if d.Status == store.StatusPending {
		out, err := r.manager.Accept(ctx, id, p.ID)
		switch {
		case err == nil:
			if out.Changed {
				r.metrics.DialogAccepted()
			}
			d = out.Dialog
		case errors.Is(err, dialog.ErrAlreadyAssigned) && admin:
			if d, err = r.manager.GetDialog(ctx, id); err != nil {
				return r.reportError(ctx, p.ID, "starting reply", err)
			}
		default:
			return r.reportError(ctx, p.ID, "starting reply", err)
		}
	}
	if d.OperatorID != p.ID && !admin {
		return r.reportError(ctx, p.ID, "starting reply", dialog.ErrNotYourDialog)
	}

	if err := r.setSession(ctx, p.ID, session.Session{Mode: session.ModeReplying, DialogID: id}); err != nil {
		return err
	}
	return r.send(ctx, p.ID, replyPrompt(d))
}

// ReplyTo relays text to the dialog's user in one step, as the /reply
// command does.
func (r *Router) ReplyTo(ctx context.Context, p Principal, id, text string) error {
	if !r.staff.IsStaff(p.ID) {
		return r.reportError(ctx, p.ID, "replying", ErrNoAccess)
	}
	return r.relay(ctx, p, id, text)
}

// CloseByOperator closes an active dialog owned by the operator. Admins may
// close any open dialog.
func (r *Router) CloseByOperator(ctx context.Context, p Principal, id string) error {
	if !r.staff.IsStaff(p.ID) {
		return r.reportError(ctx, p.ID, "closing dialog", ErrNoAccess)
	}
	admin := r.staff.IsAdmin(p.ID)

	d, err := r.manager.Close(ctx, id, dialog.ClosableBy(p.ID, admin))
	if err != nil {
		return r.reportError(ctx, p.ID, "closing dialog", err)
	}

	actor := "operator"
	if admin && d.OperatorID != p.ID {
		actor = "admin"
	}
	r.metrics.DialogClosed(actor)
	r.clearReplying(ctx, p.ID, id)
	if d.OperatorID != "" && d.OperatorID != p.ID {
		r.clearReplying(ctx, d.OperatorID, id)
	}
	r.clearUserDialog(ctx, d)

	if err := r.dispatcher.Deliver(ctx, "close", d.UserID, closedForUser()); err != nil {
		r.logger.Warn("user not told about close", "dialog_id", id, "error", err)
	}
	return r.send(ctx, p.ID, closedForOperator(d))
}

// ListDialogs shows the pending queue plus the operator's active dialogs.
func (r *Router) ListDialogs(ctx context.Context, p Principal) error {
	if !r.staff.IsStaff(p.ID) {
		return r.reportError(ctx, p.ID, "listing dialogs", ErrNoAccess)
	}

	pending, err := r.manager.GetPendingDialogs(ctx)
	if err != nil {
		return r.internalError(ctx, p.ID, "listing dialogs", err)
	}
	active, err := r.manager.GetActiveDialogsForOperator(ctx, p.ID)
	if err != nil {
		return r.internalError(ctx, p.ID, "listing dialogs", err)
	}
	return r.send(ctx, p.ID, dialogList(pending, active))
}

// clearReplying drops a replying session that points at a closed dialog.
func (r *Router) clearReplying(ctx context.Context, operatorID, id string) {
	sess, err := r.sessions.Get(ctx, operatorID)
	if err != nil || sess.Mode != session.ModeReplying || sess.DialogID != id {
		return
	}
	if err := r.sessions.Delete(ctx, operatorID); err != nil {
		r.logger.Warn("failed to clear replying session", "operator_id", operatorID, "error", err)
	}
}

// clearUserDialog returns the user to the menu if their session still
// points at the closed dialog.
func (r *Router) clearUserDialog(ctx context.Context, d *store.Dialog) {
	sess, err := r.sessions.Get(ctx, d.UserID)
	if err != nil || sess.DialogID != d.ID {
		return
	}
	r.resetSession(ctx, d.UserID)
}
