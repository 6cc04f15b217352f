// Package chatqueue orders inbound chat events.
//
// Transports receive updates on one goroutine and must not block it on
// handler work, yet a chat's session is read, modified and written per
// event. Submitting each event under its chat id keeps that chat's events
// strictly sequential while other chats proceed in parallel.
package chatqueue
