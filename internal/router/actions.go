// ABOUTME: Dispatch of button actions and slash commands onto router flows
// ABOUTME: Commands are /dialogs, /reply, /close, /cancel, /operator and /menu

package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/handoff-gateway/internal/notify"
)

// HandleAction runs the flow behind an action reference from a pressed
// button.
func (r *Router) HandleAction(ctx context.Context, p Principal, action string) error {
	verb, id, ok := notify.ParseAction(action)
	if !ok {
		r.logger.Debug("ignoring unknown action", "chat_id", p.ID, "action", action)
		return fmt.Errorf("%w: %q", ErrUnknownCommand, action)
	}

	switch verb {
	case notify.ActionAccept:
		return r.AcceptDialog(ctx, p, id)
	case notify.ActionReply:
		return r.StartReply(ctx, p, id)
	case notify.ActionClose:
		return r.CloseByOperator(ctx, p, id)
	case notify.ActionCancel:
		return r.CancelByUser(ctx, p, id)
	case notify.ActionContinue:
		return r.ContinueDialog(ctx, p)
	case notify.ActionDialogs:
		return r.ListDialogs(ctx, p)
	case notify.ActionHandoff:
		return r.RequestHandoff(ctx, p, nil)
	case notify.ActionMenu:
		return r.ShowMenu(ctx, p, id)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, action)
}

// HandleCommand runs a dialog command. name has no leading slash.
func (r *Router) HandleCommand(ctx context.Context, p Principal, name, args string) error {
	args = strings.TrimSpace(args)

	switch name {
	case "dialogs":
		return r.ListDialogs(ctx, p)

	case "reply":
		if !r.staff.IsStaff(p.ID) {
			return r.reportError(ctx, p.ID, "reply command", ErrNoAccess)
		}
		id, text, _ := strings.Cut(args, " ")
		text = strings.TrimSpace(text)
		if id == "" || text == "" {
			return r.send(ctx, p.ID, notify.OutgoingMessage{Text: "❌ Usage: /reply <dialog_id> <reply text>"})
		}
		return r.ReplyTo(ctx, p, id, text)

	case "close":
		if !r.staff.IsStaff(p.ID) {
			return r.reportError(ctx, p.ID, "close command", ErrNoAccess)
		}
		if args == "" {
			return r.send(ctx, p.ID, notify.OutgoingMessage{Text: "❌ Usage: /close <dialog_id>"})
		}
		return r.CloseByOperator(ctx, p, firstField(args))

	case "cancel":
		if args == "" {
			d, ok, err := r.manager.GetUserActiveDialog(ctx, p.ID)
			if err != nil {
				return r.internalError(ctx, p.ID, "cancel command", err)
			}
			if !ok {
				return r.dialogGone(ctx, p)
			}
			args = d.ID
		}
		return r.CancelByUser(ctx, p, firstField(args))

	case "operator":
		return r.RequestHandoff(ctx, p, nil)

	case "menu":
		return r.ShowMenu(ctx, p, firstField(args))
	}
	return fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
