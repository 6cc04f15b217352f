// ABOUTME: Dialog record types and the pending -> active -> closed state machine
// ABOUTME: Transitions validate their preconditions instead of comparing free-form strings

package store

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// DialogStatus is the lifecycle state of a dialog.
type DialogStatus string

const (
	StatusPending DialogStatus = "pending" // created, not yet claimed
	StatusActive  DialogStatus = "active"  // claimed by exactly one operator
	StatusClosed  DialogStatus = "closed"  // terminal
)

// Valid reports whether s is a known status.
func (s DialogStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusClosed:
		return true
	}
	return false
}

// IsOpen reports whether the dialog still counts as the user's conversation.
func (s DialogStatus) IsOpen() bool {
	return s == StatusPending || s == StatusActive
}

// ParseDialogStatus converts a string into a DialogStatus.
func ParseDialogStatus(s string) (DialogStatus, error) {
	status := DialogStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown dialog status %q", s)
	}
	return status, nil
}

// Sender identifies which side of a dialog wrote a message.
type Sender string

const (
	SenderUser     Sender = "user"
	SenderOperator Sender = "operator"
)

// Transition errors
var (
	ErrInvalidTransition = errors.New("invalid dialog transition")
	ErrOperatorMismatch  = errors.New("dialog is assigned to another operator")
)

// DialogMessage is one entry in a dialog's transcript.
type DialogMessage struct {
	Sender    Sender    `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Dialog is one user-to-operator support conversation.
// User identity fields are a snapshot taken at creation.
type Dialog struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	UserName   string          `json:"user_name"`
	UserPhone  string          `json:"user_phone"`
	Username   string          `json:"username,omitempty"`
	OperatorID string          `json:"operator_id,omitempty"` // set once, at acceptance
	Status     DialogStatus    `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	AcceptedAt *time.Time      `json:"accepted_at,omitempty"`
	ClosedAt   *time.Time      `json:"closed_at,omitempty"`
	ButtonPath []string        `json:"button_path"`
	Messages   []DialogMessage `json:"messages"`
}

// NewDialog builds a pending dialog with no operator and an empty transcript.
func NewDialog(id, userID, userName, userPhone, username string, buttonPath []string, now time.Time) *Dialog {
	path := slices.Clone(buttonPath)
	if path == nil {
		path = []string{}
	}
	return &Dialog{
		ID:         id,
		UserID:     userID,
		UserName:   userName,
		UserPhone:  userPhone,
		Username:   username,
		Status:     StatusPending,
		CreatedAt:  now,
		ButtonPath: path,
		Messages:   []DialogMessage{},
	}
}

// Clone returns a deep copy of the dialog.
func (d *Dialog) Clone() *Dialog {
	if d == nil {
		return nil
	}
	c := *d
	if d.AcceptedAt != nil {
		t := *d.AcceptedAt
		c.AcceptedAt = &t
	}
	if d.ClosedAt != nil {
		t := *d.ClosedAt
		c.ClosedAt = &t
	}
	c.ButtonPath = slices.Clone(d.ButtonPath)
	c.Messages = slices.Clone(d.Messages)
	return &c
}

// AssignedTo reports whether the dialog is active for the given operator.
func (d *Dialog) AssignedTo(operatorID string) bool {
	return d.Status == StatusActive && d.OperatorID == operatorID
}

// Accept moves a pending dialog to active and assigns the operator.
// Accepting an active dialog for the same operator is a no-op that returns
// changed=false; any other state is rejected.
func (d *Dialog) Accept(operatorID string, now time.Time) (changed bool, err error) {
	switch d.Status {
	case StatusPending:
		d.Status = StatusActive
		d.OperatorID = operatorID
		d.AcceptedAt = &now
		return true, nil
	case StatusActive:
		if d.OperatorID == operatorID {
			return false, nil
		}
		return false, ErrOperatorMismatch
	default:
		return false, fmt.Errorf("%w: accept from %s", ErrInvalidTransition, d.Status)
	}
}

// Close moves an open dialog to the terminal closed state.
func (d *Dialog) Close(now time.Time) error {
	if !d.Status.IsOpen() {
		return fmt.Errorf("%w: close from %s", ErrInvalidTransition, d.Status)
	}
	d.Status = StatusClosed
	d.ClosedAt = &now
	return nil
}

// Append adds a message to the transcript. The timestamp never goes
// backwards relative to the previous message.
func (d *Dialog) Append(sender Sender, text string, now time.Time) DialogMessage {
	if n := len(d.Messages); n > 0 && now.Before(d.Messages[n-1].Timestamp) {
		now = d.Messages[n-1].Timestamp
	}
	msg := DialogMessage{Sender: sender, Text: text, Timestamp: now}
	d.Messages = append(d.Messages, msg)
	return msg
}
