// ABOUTME: Messenger abstracts the chat platform's outbound call
// ABOUTME: OutgoingMessage carries text plus optional rows of action choices

package notify

import (
	"context"
	"fmt"
)

// Choice is one selectable action attached to a message.
type Choice struct {
	Label  string
	Action string
}

// OutgoingMessage is what gets sent to a chat.
type OutgoingMessage struct {
	Text string
	// Markdown marks Text as CommonMark. Transports that cannot render it
	// fall back to plain text.
	Markdown bool
	// Choices are rendered as rows of buttons or command hints.
	Choices [][]Choice
}

// Messenger sends a message to a chat id. Failures to reach the recipient
// are reported as *DeliveryError.
type Messenger interface {
	Send(ctx context.Context, chatID string, msg OutgoingMessage) error
}

// DeliveryError reports a send that did not reach the recipient.
type DeliveryError struct {
	ChatID string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.ChatID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// MessengerFunc adapts a function to the Messenger interface.
type MessengerFunc func(ctx context.Context, chatID string, msg OutgoingMessage) error

// Send calls f.
func (f MessengerFunc) Send(ctx context.Context, chatID string, msg OutgoingMessage) error {
	return f(ctx, chatID, msg)
}
