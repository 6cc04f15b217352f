// Package router turns inbound chat events into dialog operations.
//
// Transports hand the router a Principal (who sent it) and one of:
//
//   - plain text: HandleText, which picks the user or operator path
//   - a pressed button: HandleAction with an action reference such as "accept:<id>"
//   - a command: HandleCommand for dialogs, reply, close, cancel and operator
//
// # User text
//
// A user in a dialog has their message appended and forwarded to the
// assigned operator, or to every operator while the dialog is pending. A
// user whose session lost the dialog id but who still has an open dialog is
// put back into it. Other text returns ErrNotDialogTraffic for menu handling.
//
// # Operator text
//
// An operator who pressed "Reply" is in replying mode for one message. The
// message is recorded first and then relayed, so a delivery failure leaves
// it in the transcript and the operator gets a failed-send notice.
//
// # Ordering of side effects
//
// Every mutation goes through dialog.Manager and returns before anything is
// sent, so no store lock is held across network calls.
package router
