package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain lets adapters map it consistently to 404.
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	// ErrConflict signals a uniqueness violation: a duplicate open
	// opportunity fingerprint, a second active action for the same
	// (opportunity, type), or an overlapping run of the same job type.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState is returned when an operation is attempted against
	// an action or opportunity whose current status forbids it. Callers
	// routinely probe state, so services convert this into a structured
	// failure rather than letting it escape as a 5xx.
	ErrInvalidState          = errors.New("invalid state for operation")
	ErrUnsupportedJobType    = errors.New("unsupported job type")
	ErrUnsupportedActionType = errors.New("unsupported action type")
)
