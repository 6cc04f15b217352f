// Package api serves a read-only HTTP view of dialogs for operators.
//
// Routes:
//
//	GET /health              liveness, no auth
//	GET /metrics             Prometheus exposition, no auth
//	GET /api/dialogs         summaries, optional ?status=pending|active|closed
//	GET /api/dialogs/{id}    full dialog with transcript
//
// /api routes require a bearer JWT whose subject is a configured operator
// or admin. Operators see pending dialogs and their own; admins see all.
package api
