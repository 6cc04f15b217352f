// Package matrix is the Matrix front-end.
//
// Users invite the bot to a direct chat; the bot joins and treats the room
// id as the user's identity, so operators are configured by the room they
// talk to the bot in. Matrix has no inline buttons, so every choice is shown
// as the command that performs it:
//
//	!start             menu
//	!phone <number>    share a phone number
//	!operator          ask for an operator
//	!dialogs           list pending and own dialogs (staff)
//	!accept <id>       claim a dialog (staff)
//	!reply <id> [text] reply now, or send the next message as the reply
//	!close <id>        close a dialog (staff)
//	!cancel [id]       close your own dialog
package matrix
