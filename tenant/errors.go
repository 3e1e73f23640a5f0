package tenant

import "errors"

var (
	// ErrScopeViolation reports a row that escaped its tenant boundary. It is
	// an invariant failure and callers must fail closed.
	ErrScopeViolation = errors.New("tenant scope violation")
	// ErrConfiguration reports a partitioned operation with no resolvable tenant.
	ErrConfiguration = errors.New("tenant configuration error")
)
