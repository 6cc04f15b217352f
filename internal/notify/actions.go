// ABOUTME: Encoding of action references attached to message choices
// ABOUTME: Actions look like "verb" or "verb:<dialog id>"

package notify

import "strings"

// Action verbs understood by the router.
const (
	ActionAccept   = "accept"
	ActionReply    = "reply"
	ActionClose    = "close"
	ActionCancel   = "cancel"
	ActionContinue = "continue"
	ActionDialogs  = "dialogs"
	ActionHandoff  = "handoff"
	ActionMenu     = "menu" // id is a menu entry; none means the main menu
)

const actionSep = ":"

// Action builds "verb:id", or just "verb" when id is empty.
func Action(verb, id string) string {
	if id == "" {
		return verb
	}
	return verb + actionSep + id
}

// ParseAction splits an action reference. The id is everything after the
// first separator, so ids may contain anything but a leading colon.
func ParseAction(s string) (verb, id string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", false
	}
	verb, id, _ = strings.Cut(s, actionSep)
	switch verb {
	case ActionAccept, ActionReply, ActionClose, ActionCancel:
		return verb, id, id != ""
	case ActionContinue, ActionDialogs, ActionHandoff:
		return verb, "", true
	case ActionMenu:
		return verb, id, true
	default:
		return "", "", false
	}
}
