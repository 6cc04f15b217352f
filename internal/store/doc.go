// Package store provides persistence for dialogs and user contacts.
//
// # Architecture
//
// Two layers:
//
//   - ConfigStore: loads and saves named JSON documents. Implementations are
//     FileConfigStore (one file per document), SQLiteConfigStore (one row per
//     document) and MemoryConfigStore (tests).
//   - DialogStore: dialog records plus the user and operator indexes.
//     DocumentStore keeps the whole "dialogs" document in memory and writes it
//     through to a ConfigStore after each mutation.
//
// # Persisted Shape
//
//	{
//	  "dialogs": {"<id>": {...}},
//	  "user_active_dialogs": {"<user_id>": "<id>"},
//	  "operator_active_dialogs": {"<operator_id>": ["<id>", ...]}
//	}
//
// # Locking
//
// UpdateDialog holds a lock keyed by dialog id for the whole
// read-modify-write cycle, CreateForUser holds a lock keyed by user id.
// Index changes are applied in the same critical section as the record
// write, so readers never see one without the other.
//
// # Error Handling
//
//   - ErrNotFound: requested dialog or document does not exist
//   - ErrDuplicateDialog: an insert reused an existing id
//   - ErrInvalidTransition, ErrOperatorMismatch: rejected state changes
//
// A corrupt or unreadable document is logged and treated as empty.
package store
