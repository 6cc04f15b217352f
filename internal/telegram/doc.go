// Package telegram is the Telegram Bot API front-end.
//
// Users start with /start, share their phone number through a contact
// keyboard and press "Talk to operator". Operators are configured by user
// id; in private chats that id is also the chat id, so it doubles as the
// address for alerts. Inline buttons carry action references such as
// accept:<dialog id>, which the bot hands to the router unchanged.
package telegram
