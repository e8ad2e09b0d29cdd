package service

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyChunk marks a zero-byte capture; a caller bug, never retried.
	ErrEmptyChunk = errors.New("chunk is empty")

	// ErrAlreadyFinalizing rejects a second Complete racing an in-flight one.
	ErrAlreadyFinalizing = errors.New("completion already in progress")

	ErrNoActiveJob         = errors.New("no active upload job for session")
	ErrRecordingInProgress = errors.New("an upload job already exists for session")
	ErrJobNotActive        = errors.New("upload job is not active")
)

// ValidationError reports a session the external platform refused to validate.
type ValidationError struct {
	SessionID string
	Status    ValidationStatus
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("session %s failed validation: %s", e.SessionID, e.Status)
}
