// ABOUTME: Builds the staff and channel variants of the new-dialog alert
// ABOUTME: The channel variant leaves out the user id and any actions

package notify

import (
	"fmt"
	"strings"

	"github.com/2389/handoff-gateway/internal/store"
)

const notSet = "not set"

// StaffAlert is sent to each operator when a dialog is created.
func StaffAlert(d *store.Dialog) OutgoingMessage {
	var b strings.Builder
	b.WriteString("🔔 **New request for an operator**\n\n")
	fmt.Fprintf(&b, "👤 **Name:** %s\n", orDefault(d.UserName, notSet))
	fmt.Fprintf(&b, "📱 **Phone:** %s\n", orDefault(d.UserPhone, notSet))
	if d.Username != "" {
		fmt.Fprintf(&b, "🔗 **Username:** @%s\n", d.Username)
	} else {
		fmt.Fprintf(&b, "🔗 **Username:** %s\n", notSet)
	}
	fmt.Fprintf(&b, "🆔 **User ID:** %s\n", d.UserID)
	writeButtonPath(&b, d.ButtonPath)

	return OutgoingMessage{
		Text:     b.String(),
		Markdown: true,
		Choices: [][]Choice{
			{{Label: "✅ Accept dialog", Action: Action(ActionAccept, d.ID)}},
		},
	}
}

// ChannelAlert is posted once to the announcement chat.
func ChannelAlert(d *store.Dialog) OutgoingMessage {
	var b strings.Builder
	b.WriteString("🔔 **New request for an operator**\n\n")
	fmt.Fprintf(&b, "👤 **Name:** %s\n", orDefault(d.UserName, notSet))
	fmt.Fprintf(&b, "📱 **Phone:** %s\n", orDefault(d.UserPhone, notSet))
	if d.Username != "" {
		fmt.Fprintf(&b, "🔗 **Username:** @%s\n", d.Username)
	}
	writeButtonPath(&b, d.ButtonPath)

	return OutgoingMessage{Text: b.String(), Markdown: true}
}

func writeButtonPath(b *strings.Builder, path []string) {
	if len(path) == 0 {
		b.WriteString("\n📍 **Button path:** main menu\n")
		return
	}
	b.WriteString("\n📍 **Button path:**\n")
	for i, label := range path {
		fmt.Fprintf(b, "%d. %s\n", i+1, label)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
