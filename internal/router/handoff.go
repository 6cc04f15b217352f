// ABOUTME: User-side flows: start, phone capture, handoff requests, continue and cancel
// ABOUTME: New-dialog alerts go out only when a dialog was actually created

package router

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/2389/handoff-gateway/internal/dialog"
	"github.com/2389/handoff-gateway/internal/menu"
	"github.com/2389/handoff-gateway/internal/session"
	"github.com/2389/handoff-gateway/internal/store"
)

// Start greets a chat. It returns true when the transport must ask for a
// phone number before anything else; the session is then awaiting_phone.
// Staff skip the phone step.
func (r *Router) Start(ctx context.Context, p Principal) (bool, error) {
	staff := r.staff.IsStaff(p.ID)
	if _, ok := r.phones.Get(p.ID); !ok && !staff {
		if err := r.setSession(ctx, p.ID, session.Session{Mode: session.ModeAwaitingPhone}); err != nil {
			return false, err
		}
		return true, nil
	}

	// An open dialog survives /start. Otherwise the chat returns to menu
	// mode; the button path is kept so it still reaches the next handoff.
	if _, ok, err := r.manager.GetUserActiveDialog(ctx, p.ID); err == nil && !ok {
		r.leaveDialogMode(ctx, p.ID)
	}
	return false, r.send(ctx, p.ID, r.menuScreen(r.menu.Root(), p, staff))
}

// leaveDialogMode switches a chat to menu mode without touching its path.
func (r *Router) leaveDialogMode(ctx context.Context, chatID string) {
	sess, err := r.sessions.Get(ctx, chatID)
	if err != nil {
		r.logger.Warn("failed to load session", "chat_id", chatID, "error", err)
		sess = session.Session{}
	}
	sess.Mode = session.ModeMenu
	sess.DialogID = ""
	if err := r.sessions.Put(ctx, chatID, sess); err != nil {
		r.logger.Warn("failed to reset session", "chat_id", chatID, "error", err)
	}
}

// SaveContact stores the phone number a chat shared and shows the menu.
func (r *Router) SaveContact(ctx context.Context, p Principal, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrPhoneRequired
	}

	first, last, _ := strings.Cut(p.Name, " ")
	err := r.phones.Set(ctx, p.ID, store.Contact{
		Phone:     phone,
		FirstName: first,
		LastName:  last,
		Username:  p.Username,
	})
	if err != nil {
		return r.internalError(ctx, p.ID, "saving contact", err)
	}
	r.logger.Info("phone number saved", "user_id", p.ID)

	if err := r.setSession(ctx, p.ID, session.Session{Mode: session.ModeMenu}); err != nil {
		return err
	}
	msg := r.menuScreen(r.menu.Root(), p, r.staff.IsStaff(p.ID))
	msg.Text = textPhoneSaved + msg.Text
	return r.send(ctx, p.ID, msg)
}

// Navigate opens the menu entry a chat named by its label and shows it. The
// label is looked up under the entry the chat is on, then in the main menu.
// The labels leading to the entry become the button path attached to the
// next handoff. ErrUnknownLabel means the text is no menu entry.
func (r *Router) Navigate(ctx context.Context, p Principal, label string) error {
	sess, err := r.sessions.Get(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if sess.Mode != session.ModeMenu {
		return nil
	}

	label = strings.TrimSpace(label)
	cur := r.menu.Resolve(sess.ButtonPath)
	switch {
	case strings.EqualFold(label, labelTalkToOperator):
		return r.RequestHandoff(ctx, p, nil)
	case strings.EqualFold(label, labelBack):
		if !cur.IsRoot() {
			cur = cur.Parent()
		}
		return r.enterMenu(ctx, p, sess, cur)
	}

	next, ok := cur.Child(label)
	if !ok {
		next, ok = r.menu.Root().Child(label)
	}
	if !ok {
		return ErrUnknownLabel
	}
	return r.enterMenu(ctx, p, sess, next)
}

// ShowMenu opens the menu entry with the given id. An unknown or empty id
// opens the main menu.
func (r *Router) ShowMenu(ctx context.Context, p Principal, id string) error {
	if _, ok := r.phones.Get(p.ID); !ok && !r.staff.IsStaff(p.ID) {
		return ErrPhoneRequired
	}
	sess, err := r.sessions.Get(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	n, ok := r.menu.Node(id)
	if !ok {
		n = r.menu.Root()
	}
	return r.enterMenu(ctx, p, sess, n)
}

func (r *Router) enterMenu(ctx context.Context, p Principal, sess session.Session, n *menu.Node) error {
	sess.Mode = session.ModeMenu
	sess.DialogID = ""
	sess.ButtonPath = n.Path()
	if err := r.setSession(ctx, p.ID, sess); err != nil {
		return err
	}
	return r.send(ctx, p.ID, r.menuScreen(n, p, r.staff.IsStaff(p.ID)))
}

// RequestHandoff opens a dialog for the user, or offers to continue the one
// already open. buttonPath defaults to the path recorded in the session.
func (r *Router) RequestHandoff(ctx context.Context, p Principal, buttonPath []string) error {
	sess, err := r.sessions.Get(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if buttonPath == nil {
		buttonPath = sess.ButtonPath
	}
	buttonPath = append(slices.Clone(buttonPath), labelTalkToOperator)

	contact, _ := r.phones.Get(p.ID)
	out, err := r.manager.CreateOrResume(ctx, dialog.Requester{
		UserID:    p.ID,
		UserName:  p.Name,
		UserPhone: contact.Phone,
		Username:  p.Username,
	}, buttonPath)
	if err != nil {
		return r.internalError(ctx, p.ID, "requesting handoff", err)
	}

	d := out.Dialog
	if !out.Changed {
		return r.send(ctx, p.ID, existingDialog(d))
	}

	r.metrics.DialogCreated()
	if err := r.setSession(ctx, p.ID, session.Session{Mode: session.ModeInDialog, DialogID: d.ID}); err != nil {
		return err
	}

	// The dialog stays created even if nobody could be alerted.
	r.dispatcher.NotifyNewDialog(ctx, d)
	return r.send(ctx, p.ID, askQuestion(d))
}

// ContinueDialog puts the user back into their open dialog.
func (r *Router) ContinueDialog(ctx context.Context, p Principal) error {
	d, ok, err := r.manager.GetUserActiveDialog(ctx, p.ID)
	if err != nil {
		return r.internalError(ctx, p.ID, "continuing dialog", err)
	}
	if !ok {
		return r.dialogGone(ctx, p)
	}
	if err := r.setSession(ctx, p.ID, session.Session{Mode: session.ModeInDialog, DialogID: d.ID}); err != nil {
		return err
	}
	return r.send(ctx, p.ID, continued(d))
}

// CancelByUser closes the user's own dialog, pending or active. The
// assigned operator, if any, is told.
func (r *Router) CancelByUser(ctx context.Context, p Principal, id string) error {
	d, err := r.manager.Close(ctx, id, dialog.OwnedByUser(p.ID))
	if err != nil {
		return r.reportError(ctx, p.ID, "cancelling dialog", err)
	}
	r.metrics.DialogClosed("user")
	r.resetSession(ctx, p.ID)

	if d.OperatorID != "" {
		r.clearReplying(ctx, d.OperatorID, d.ID)
		if err := r.dispatcher.Deliver(ctx, "cancel", d.OperatorID, cancelledForOperator(d)); err != nil {
			r.logger.Warn("operator not told about cancellation", "dialog_id", d.ID, "error", err)
		}
	}
	return r.send(ctx, p.ID, cancelledForUser())
}
