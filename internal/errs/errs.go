package errs

import "errors"

// Sentinel errors for the failure classes the service distinguishes.
// Callers classify with errors.Is after unwrapping.
var (
	// ErrAuthRequired means no valid session was presented.
	ErrAuthRequired = errors.New("authentication required")

	// ErrNotFound means a row, object, or unresolvable media path.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied means the caller may not perform the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTransient means a retryable network or backend failure.
	ErrTransient = errors.New("transient failure")

	// ErrValidation means the request content is invalid.
	ErrValidation = errors.New("validation failed")
)
