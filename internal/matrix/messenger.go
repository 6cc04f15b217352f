// ABOUTME: Matrix implementation of notify.Messenger
// ABOUTME: Renders markdown to HTML with goldmark and choices as command hints

package matrix

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/handoff-gateway/internal/notify"
)

// CommandPrefix starts every bot command in a room.
const CommandPrefix = "!"

// sender is the part of mautrix.Client the messenger uses.
type sender interface {
	SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON any, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error)
}

// Messenger posts notify messages into rooms. Chat ids are room ids.
type Messenger struct {
	client sender
	md     goldmark.Markdown
}

// NewMessenger wraps a client.
func NewMessenger(client sender) *Messenger {
	return &Messenger{client: client, md: goldmark.New()}
}

// Send posts msg to the room chatID.
func (m *Messenger) Send(ctx context.Context, chatID string, msg notify.OutgoingMessage) error {
	content, err := m.render(msg)
	if err != nil {
		return &notify.DeliveryError{ChatID: chatID, Err: err}
	}
	if _, err := m.client.SendMessageEvent(ctx, id.RoomID(chatID), event.EventMessage, content); err != nil {
		return &notify.DeliveryError{ChatID: chatID, Err: err}
	}
	return nil
}

func (m *Messenger) render(msg notify.OutgoingMessage) (*event.MessageEventContent, error) {
	hints := commandHints(msg.Choices)

	body := msg.Text
	if msg.Markdown {
		body = strings.ReplaceAll(body, "**", "")
	}
	if hints != "" {
		body += "\n\n" + hints
	}

	var formatted bytes.Buffer
	if msg.Markdown {
		if err := m.md.Convert([]byte(msg.Text), &formatted); err != nil {
			return nil, fmt.Errorf("rendering markdown: %w", err)
		}
	} else {
		formatted.WriteString(strings.ReplaceAll(html.EscapeString(msg.Text), "\n", "<br>"))
	}
	if hints != "" {
		formatted.WriteString("<p>")
		formatted.WriteString(strings.ReplaceAll(html.EscapeString(hints), "\n", "<br>"))
		formatted.WriteString("</p>")
	}

	return &event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          body,
		Format:        event.FormatHTML,
		FormattedBody: formatted.String(),
	}, nil
}

// commandHints lists each choice as the command that performs it, one per line.
func commandHints(choices [][]notify.Choice) string {
	var lines []string
	for _, row := range choices {
		for _, c := range row {
			if cmd := commandFor(c.Action); cmd != "" {
				lines = append(lines, fmt.Sprintf("%s: %s", c.Label, cmd))
			}
		}
	}
	return strings.Join(lines, "\n")
}

// commandFor maps an action reference to the room command with the same effect.
func commandFor(action string) string {
	verb, ref, ok := notify.ParseAction(action)
	if !ok {
		return ""
	}
	switch verb {
	case notify.ActionAccept, notify.ActionClose, notify.ActionCancel:
		return CommandPrefix + verb + " " + ref
	case notify.ActionReply:
		return CommandPrefix + "reply " + ref + " <text>"
	case notify.ActionContinue:
		return CommandPrefix + "continue"
	case notify.ActionDialogs:
		return CommandPrefix + "dialogs"
	case notify.ActionHandoff:
		return CommandPrefix + "operator"
	case notify.ActionMenu:
		if ref == "" {
			return CommandPrefix + "menu"
		}
		return CommandPrefix + "menu " + ref
	}
	return ""
}
