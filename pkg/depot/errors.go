package depot

import "errors"

// StoreError represents a domain error from store or blob operations.
//
// These are business logic errors (record not found, duplicate email,
// quota exceeded) as opposed to infrastructure errors (network failure,
// disk error). The HTTP layer translates StoreError codes to status codes.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Key identifies the record or object related to the error
	// (a UUID, an email, an object key), if applicable
	Key string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key != "" {
		return e.Message + ": " + e.Key
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested user/file/share doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrExists indicates a uniqueness conflict (duplicate email,
	// second share for the same file)
	ErrExists

	// ErrConstraint indicates the operation would violate a relation
	// (deleting a user who still owns files)
	ErrConstraint

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: empty filename, malformed folder path, bad share code
	ErrInvalidArgument

	// ErrAccessDenied indicates the caller is not allowed to touch the
	// record (wrong owner, wrong share code, deactivated account)
	ErrAccessDenied

	// ErrQuotaExceeded indicates the upload would push the owner past
	// their storage quota
	ErrQuotaExceeded

	// ErrIOError indicates an I/O error reading or writing a backend
	ErrIOError
)

// String returns the snake_case name of the code, used in logs and
// error payloads.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not_found"
	case ErrExists:
		return "already_exists"
	case ErrConstraint:
		return "constraint_violation"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrAccessDenied:
		return "access_denied"
	case ErrQuotaExceeded:
		return "quota_exceeded"
	case ErrIOError:
		return "io_error"
	default:
		return "unknown"
	}
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) a StoreError.
func CodeOf(err error) (ErrorCode, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// IsCode reports whether err carries the given ErrorCode.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsNotFound reports whether err is a not-found store error.
func IsNotFound(err error) bool {
	return IsCode(err, ErrNotFound)
}
