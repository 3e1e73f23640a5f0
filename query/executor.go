package query

import "context"

// Executor runs operations against a backing store.
type Executor interface {
	Execute(ctx context.Context, op Operation) (Result, error)
}

// ExecutorFunc adapts a function to [Executor].
type ExecutorFunc func(ctx context.Context, op Operation) (Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, op Operation) (Result, error) {
	return f(ctx, op)
}
