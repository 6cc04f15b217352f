// ABOUTME: Router decides what an inbound chat event means and drives the dialog manager
// ABOUTME: Mutations go through the manager first; notifications are sent after its locks are released

package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/handoff-gateway/internal/dialog"
	"github.com/2389/handoff-gateway/internal/menu"
	"github.com/2389/handoff-gateway/internal/metrics"
	"github.com/2389/handoff-gateway/internal/notify"
	"github.com/2389/handoff-gateway/internal/session"
	"github.com/2389/handoff-gateway/internal/store"
)

var (
	// ErrNotDialogTraffic means the text belongs to menu handling, not to a dialog.
	ErrNotDialogTraffic = errors.New("not dialog traffic")

	// ErrPhoneRequired means the chat must share a phone number first.
	ErrPhoneRequired = errors.New("phone number required")

	// ErrNoAccess is returned when a non-staff chat uses a staff action.
	ErrNoAccess = errors.New("staff only")

	// ErrUnknownCommand is returned for commands the router does not own.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUnknownLabel means the text is not a menu entry reachable from where
	// the chat is.
	ErrUnknownLabel = errors.New("not a menu entry")
)

// Principal is the party behind an inbound event. ID doubles as the chat id
// replies are sent to.
type Principal struct {
	ID       string
	Name     string
	Username string
}

// Staff knows which principals are operators and admins. Admins are
// operators with override rights.
type Staff struct {
	admins    map[string]bool
	operators map[string]bool
}

// NewStaff builds a Staff from id lists.
func NewStaff(admins, operators []string) Staff {
	s := Staff{admins: make(map[string]bool), operators: make(map[string]bool)}
	for _, id := range admins {
		if id = strings.TrimSpace(id); id != "" {
			s.admins[id] = true
		}
	}
	for _, id := range operators {
		if id = strings.TrimSpace(id); id != "" {
			s.operators[id] = true
		}
	}
	return s
}

// IsAdmin reports whether id has override rights.
func (s Staff) IsAdmin(id string) bool {
	return s.admins[id]
}

// IsStaff reports whether id is an operator or an admin.
func (s Staff) IsStaff(id string) bool {
	return s.admins[id] || s.operators[id]
}

// Deps are the router's collaborators.
type Deps struct {
	Manager    *dialog.Manager
	Dispatcher *notify.Dispatcher
	Sessions   session.Store
	Phones     *store.PhoneBook
	Menu       *menu.Menu // nil means an empty menu
	Staff      Staff
	Metrics    *metrics.Metrics
}

// Router maps chat events onto dialog operations.
type Router struct {
	manager    *dialog.Manager
	dispatcher *notify.Dispatcher
	sessions   session.Store
	phones     *store.PhoneBook
	menu       *menu.Menu
	staff      Staff
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates a Router.
func New(deps Deps, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Menu
	if m == nil {
		m = menu.Empty()
	}
	return &Router{
		manager:    deps.Manager,
		dispatcher: deps.Dispatcher,
		sessions:   deps.Sessions,
		phones:     deps.Phones,
		menu:       m,
		staff:      deps.Staff,
		metrics:    deps.Metrics,
		logger:     logger.With("component", "router"),
	}
}

// IsStaff reports whether p may use operator actions.
func (r *Router) IsStaff(p Principal) bool {
	return r.staff.IsStaff(p.ID)
}

// HandleText routes a plain text message. Staff text is dialog traffic only
// while replying; everything else goes through the user path.
func (r *Router) HandleText(ctx context.Context, p Principal, text string) error {
	if r.staff.IsStaff(p.ID) {
		return r.HandleOperatorText(ctx, p, text)
	}

	sess, err := r.sessions.Get(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if sess.Mode == session.ModeAwaitingPhone {
		return ErrPhoneRequired
	}
	return r.HandleUserText(ctx, p, text)
}

// HandleUserText records a user message in their open dialog and alerts the
// assigned operator, or every operator while the dialog is still pending.
// A lost session is healed from the user index.
func (r *Router) HandleUserText(ctx context.Context, p Principal, text string) error {
	sess, err := r.sessions.Get(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	dialogID := ""
	if sess.Mode == session.ModeInDialog {
		dialogID = sess.DialogID
	}
	if dialogID == "" {
		d, ok, err := r.manager.GetUserActiveDialog(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("looking up open dialog: %w", err)
		}
		if !ok {
			if sess.Mode == session.ModeInDialog {
				return r.dialogGone(ctx, p)
			}
			return ErrNotDialogTraffic
		}
		dialogID = d.ID
		r.logger.Info("adopting open dialog into session", "user_id", p.ID, "dialog_id", dialogID)
		if err := r.setSession(ctx, p.ID, session.Session{Mode: session.ModeInDialog, DialogID: dialogID}); err != nil {
			return err
		}
	}

	d, err := r.manager.AppendMessage(ctx, dialogID, store.SenderUser, text, dialog.Open, dialog.OwnedByUser(p.ID))
	switch {
	case errors.Is(err, dialog.ErrDialogNotFound), errors.Is(err, dialog.ErrDialogClosed), errors.Is(err, dialog.ErrNotYourDialog):
		return r.dialogGone(ctx, p)
	case err != nil:
		return r.internalError(ctx, p.ID, "recording user message", err)
	}

	msg := userMessageAlert(d, text)
	if d.Status == store.StatusActive {
		if err := r.dispatcher.Deliver(ctx, "user_message", d.OperatorID, msg); err == nil {
			r.metrics.MessageRelayed(metrics.DirectionToOperator)
		}
		return nil
	}

	report := r.dispatcher.Broadcast(ctx, "user_message", r.dispatcher.Operators(), msg)
	if len(report.Delivered) > 0 {
		r.metrics.MessageRelayed(metrics.DirectionToOperator)
	}
	return nil
}

// HandleOperatorText relays the text of an operator in replying mode to the
// dialog's user. Replying mode ends after one message.
func (r *Router) HandleOperatorText(ctx context.Context, p Principal, text string) error {
	if !r.staff.IsStaff(p.ID) {
		return ErrNotDialogTraffic
	}
	sess, err := r.sessions.Get(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if sess.Mode != session.ModeReplying || sess.DialogID == "" {
		return ErrNotDialogTraffic
	}

	if err := r.sessions.Delete(ctx, p.ID); err != nil {
		r.logger.Warn("failed to clear replying session", "operator_id", p.ID, "error", err)
	}
	return r.relay(ctx, p, sess.DialogID, text)
}

// relay records the operator message and then delivers it. A failed
// delivery leaves the message recorded and tells the operator.
func (r *Router) relay(ctx context.Context, p Principal, id, text string) error {
	out, err := r.manager.Reply(ctx, id, p.ID, r.staff.IsAdmin(p.ID), text)
	if err != nil {
		return r.reportError(ctx, p.ID, "relaying operator reply", err)
	}
	if out.Changed {
		r.metrics.DialogAccepted()
	}
	d := out.Dialog

	if err := r.dispatcher.Deliver(ctx, "relay", d.UserID, operatorReply(text)); err != nil {
		r.logger.Warn("operator reply recorded but not delivered",
			"dialog_id", d.ID,
			"operator_id", p.ID,
			"error", err)
		return r.send(ctx, p.ID, replyUndelivered(d))
	}

	r.metrics.MessageRelayed(metrics.DirectionToUser)
	return r.send(ctx, p.ID, replyDelivered(d))
}

// send delivers a direct response to the principal that triggered an event.
func (r *Router) send(ctx context.Context, chatID string, msg notify.OutgoingMessage) error {
	if err := r.dispatcher.Deliver(ctx, "response", chatID, msg); err != nil {
		return fmt.Errorf("responding to %s: %w", chatID, err)
	}
	return nil
}

func (r *Router) setSession(ctx context.Context, chatID string, s session.Session) error {
	if err := r.sessions.Put(ctx, chatID, s); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (r *Router) resetSession(ctx context.Context, chatID string) {
	if err := r.sessions.Put(ctx, chatID, session.Session{Mode: session.ModeMenu}); err != nil {
		r.logger.Warn("failed to reset session", "chat_id", chatID, "error", err)
	}
}

// dialogGone resets a user whose recorded dialog no longer accepts messages.
func (r *Router) dialogGone(ctx context.Context, p Principal) error {
	r.resetSession(ctx, p.ID)
	return r.send(ctx, p.ID, dialogNotFoundForUser())
}

// reportError answers domain errors with a short text. Anything else is
// logged and answered generically.
func (r *Router) reportError(ctx context.Context, chatID, op string, err error) error {
	if text, ok := errorText(err); ok {
		r.logger.Debug("rejected", "op", op, "chat_id", chatID, "reason", err)
		return r.send(ctx, chatID, notify.OutgoingMessage{Text: text})
	}
	return r.internalError(ctx, chatID, op, err)
}

func (r *Router) internalError(ctx context.Context, chatID, op string, err error) error {
	r.logger.Error("operation failed", "op", op, "chat_id", chatID, "error", err)
	if sendErr := r.send(ctx, chatID, notify.OutgoingMessage{Text: textInternalError}); sendErr != nil {
		r.logger.Warn("failed to report error", "chat_id", chatID, "error", sendErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}
