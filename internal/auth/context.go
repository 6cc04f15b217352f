// ABOUTME: Request context carrying the authenticated operator
// ABOUTME: Set by the HTTP middleware, read by API handlers

package auth

import "context"

// Operator is the authenticated caller of an API request.
type Operator struct {
	ID    string
	Admin bool
}

type operatorKey struct{}

// WithOperator returns a new context with op attached.
func WithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// FromContext returns the operator attached to ctx, or nil.
func FromContext(ctx context.Context) *Operator {
	op, _ := ctx.Value(operatorKey{}).(*Operator)
	return op
}
