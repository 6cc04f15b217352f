// Package gateway wires a handoff gateway together.
//
// NewCore opens the configured document backend (JSON files or SQLite),
// loads dialogs and phone numbers from it, opens the session store (memory
// or Redis) and registers metrics. New adds one router per enabled chat
// platform, each with its own staff list and dispatcher, plus the optional
// HTTP API. Run blocks until the context is cancelled or a component fails.
package gateway
