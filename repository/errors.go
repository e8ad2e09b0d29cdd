package repository

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindForbiddenField
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbiddenField:
		return "forbidden_field"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is the closed failure variant produced at the record store boundary.
type Error struct {
	Kind      Kind
	SessionID string
	Field     string
	Err       error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("session store: %s: field %q on session %s", e.Kind, e.Field, e.SessionID)
	}
	if e.Err == nil {
		return fmt.Sprintf("session store: %s: session %s", e.Kind, e.SessionID)
	}
	return fmt.Sprintf("session store: %s: session %s: %v", e.Kind, e.SessionID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable covers backing-store unavailability only. A surfaced Conflict has
// already spent its dedicated retry budget inside Transact.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable
}

func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotFound
}

func IsConflict(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindConflict
}
