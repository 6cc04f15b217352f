// ABOUTME: User-visible texts and message builders for the router
// ABOUTME: Relayed dialog text is sent as plain text so it arrives verbatim

package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/2389/handoff-gateway/internal/dialog"
	"github.com/2389/handoff-gateway/internal/menu"
	"github.com/2389/handoff-gateway/internal/notify"
	"github.com/2389/handoff-gateway/internal/store"
)

const (
	labelTalkToOperator = "💬 Talk to operator"
	labelDialogs        = "📋 Dialogs"
	labelBack           = "🔙 Back"

	textWelcome    = "👋 Hello, {name}! How can we help?"
	textPhoneSaved = "✅ Thank you! Your phone number has been saved.\n\n"

	textInternalError = "❌ Something went wrong. Please try again later."
	textNoAccess      = "❌ You do not have access to this command."
)

func errorText(err error) (string, bool) {
	switch {
	case errors.Is(err, dialog.ErrDialogNotFound):
		return "❌ Dialog not found.", true
	case errors.Is(err, dialog.ErrDialogClosed):
		return "❌ This dialog is already closed.", true
	case errors.Is(err, dialog.ErrAlreadyAssigned):
		return "❌ Another operator has already accepted this dialog.", true
	case errors.Is(err, dialog.ErrNotYourDialog):
		return "❌ This is not your dialog.", true
	case errors.Is(err, ErrNoAccess):
		return textNoAccess, true
	}
	return "", false
}

func handle(username string) string {
	if username == "" {
		return "no username"
	}
	return "@" + username
}

func statusText(d *store.Dialog) string {
	if d.Status == store.StatusActive {
		return "active"
	}
	return "waiting for an operator"
}

// menuScreen renders a menu entry: its sub-entries, then the operator
// button on the main menu and on leaves, then a way back.
func (r *Router) menuScreen(n *menu.Node, p Principal, staff bool) notify.OutgoingMessage {
	var choices [][]notify.Choice
	for _, row := range n.Rows {
		line := make([]notify.Choice, 0, len(row))
		for _, c := range row {
			line = append(line, notify.Choice{Label: c.Label, Action: notify.Action(notify.ActionMenu, c.ID)})
		}
		choices = append(choices, line)
	}
	if n.IsRoot() || n.Leaf() {
		choices = append(choices, []notify.Choice{{Label: labelTalkToOperator, Action: notify.ActionHandoff}})
	}
	if !n.IsRoot() {
		choices = append(choices, []notify.Choice{{Label: labelBack, Action: notify.Action(notify.ActionMenu, n.Parent().ID)}})
	}
	if n.IsRoot() && staff {
		choices = append(choices, []notify.Choice{{Label: labelDialogs, Action: notify.ActionDialogs}})
	}

	text := n.Text
	switch {
	case n.IsRoot():
		name := p.Name
		if name == "" {
			name = "there"
		}
		text = strings.ReplaceAll(r.menu.Text("welcome", textWelcome), "{name}", name)
	case text == "":
		text = fmt.Sprintf("ℹ️ You selected: %s", n.Label)
	}
	return notify.OutgoingMessage{Text: text, Choices: choices}
}

func askQuestion(d *store.Dialog) notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: "💬 Write your question:",
		Choices: [][]notify.Choice{
			{{Label: "❌ Cancel dialog", Action: notify.Action(notify.ActionCancel, d.ID)}},
		},
	}
}

func existingDialog(d *store.Dialog) notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: fmt.Sprintf("You already have a dialog with an operator (%s).\n\n"+
			"💬 Just write your message in the chat and it will be forwarded.\n\n"+
			"Or cancel the dialog if you want to start a new one.", statusText(d)),
		Choices: [][]notify.Choice{
			{{Label: "💬 Continue dialog", Action: notify.ActionContinue}},
			{{Label: "❌ Cancel dialog", Action: notify.Action(notify.ActionCancel, d.ID)}},
		},
	}
}

func continued(d *store.Dialog) notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: fmt.Sprintf("💬 Dialog with an operator (%s).\n\nWrite your message:", statusText(d)),
		Choices: [][]notify.Choice{
			{{Label: "❌ Cancel dialog", Action: notify.Action(notify.ActionCancel, d.ID)}},
		},
	}
}

func dialogNotFoundForUser() notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: "❌ Dialog not found.",
		Choices: [][]notify.Choice{
			{{Label: labelTalkToOperator, Action: notify.ActionHandoff}},
		},
	}
}

func cancelledForUser() notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: "✅ Dialog cancelled.",
		Choices: [][]notify.Choice{
			{{Label: labelTalkToOperator, Action: notify.ActionHandoff}},
		},
	}
}

func cancelledForOperator(d *store.Dialog) notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: fmt.Sprintf("ℹ️ %s (%s) cancelled the dialog.", d.UserName, handle(d.Username)),
	}
}

func closedForUser() notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: "ℹ️ The dialog with the operator has ended. If you have more questions, you can start a new dialog.",
		Choices: [][]notify.Choice{
			{{Label: labelTalkToOperator, Action: notify.ActionHandoff}},
		},
	}
}

func closedForOperator(d *store.Dialog) notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: fmt.Sprintf("✅ Dialog with %s closed.\n\n👤 User: %s\n📱 Phone: %s",
			d.UserName, d.UserName, d.UserPhone),
	}
}

func userMessageAlert(d *store.Dialog, text string) notify.OutgoingMessage {
	body := fmt.Sprintf("💬 Message from %s (%s)\n\n📱 %s\n\n%s",
		d.UserName, handle(d.Username), d.UserPhone, text)

	choices := [][]notify.Choice{
		{{Label: "💬 Reply", Action: notify.Action(notify.ActionReply, d.ID)}},
	}
	if d.Status == store.StatusActive {
		choices = append(choices, []notify.Choice{{Label: "❌ Close", Action: notify.Action(notify.ActionClose, d.ID)}})
	}
	return notify.OutgoingMessage{Text: body, Choices: choices}
}

func acceptedCard(d *store.Dialog) notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: fmt.Sprintf("👤 %s\n📱 %s\n🔗 %s", d.UserName, d.UserPhone, handle(d.Username)),
		Choices: [][]notify.Choice{
			{{Label: "💬 Reply", Action: notify.Action(notify.ActionReply, d.ID)}},
			{{Label: "❌ Close", Action: notify.Action(notify.ActionClose, d.ID)}},
		},
	}
}

func replyPrompt(d *store.Dialog) notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: fmt.Sprintf("💬 Send your reply for the dialog with %s (%s):", d.UserName, handle(d.Username)),
	}
}

func alreadyReplying() notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: "💬 You are already replying in this dialog. Just write your message.",
	}
}

func operatorReply(text string) notify.OutgoingMessage {
	return notify.OutgoingMessage{Text: "💬 Reply from the operator:\n\n" + text}
}

func replyDelivered(d *store.Dialog) notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: fmt.Sprintf("✅ Reply sent to %s.", d.UserName),
		Choices: [][]notify.Choice{
			{{Label: "💬 Reply again", Action: notify.Action(notify.ActionReply, d.ID)}},
			{{Label: labelDialogs, Action: notify.ActionDialogs}},
		},
	}
}

func replyUndelivered(d *store.Dialog) notify.OutgoingMessage {
	return notify.OutgoingMessage{
		Text: fmt.Sprintf("⚠️ Your reply was saved but could not be delivered to %s. They may have blocked the bot.", d.UserName),
		Choices: [][]notify.Choice{
			{{Label: "💬 Try again", Action: notify.Action(notify.ActionReply, d.ID)}},
		},
	}
}

func dialogList(pending, active []*store.Dialog) notify.OutgoingMessage {
	if len(pending) == 0 && len(active) == 0 {
		return notify.OutgoingMessage{Text: "📭 No active or pending dialogs."}
	}

	var b strings.Builder
	var choices [][]notify.Choice
	if len(pending) > 0 {
		b.WriteString("🔔 Pending dialogs:\n")
		for _, d := range pending {
			fmt.Fprintf(&b, "\n🔔 %s\n📱 %s\n🔗 %s\n⏰ %s\n",
				d.UserName, d.UserPhone, handle(d.Username), d.CreatedAt.Format("2006-01-02 15:04"))
			choices = append(choices, []notify.Choice{
				{Label: "✅ Accept " + d.UserName, Action: notify.Action(notify.ActionAccept, d.ID)},
			})
		}
	}
	if len(active) > 0 {
		if len(pending) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("💬 Your active dialogs:\n")
		for _, d := range active {
			accepted := "n/a"
			if d.AcceptedAt != nil {
				accepted = d.AcceptedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(&b, "\n👤 %s\n📱 %s\n🔗 %s\n⏰ Accepted: %s\n",
				d.UserName, d.UserPhone, handle(d.Username), accepted)
			choices = append(choices,
				[]notify.Choice{{Label: "💬 Reply " + d.UserName, Action: notify.Action(notify.ActionReply, d.ID)}},
				[]notify.Choice{{Label: "❌ Close " + d.UserName, Action: notify.Action(notify.ActionClose, d.ID)}},
			)
		}
	}
	return notify.OutgoingMessage{Text: b.String(), Choices: choices}
}
