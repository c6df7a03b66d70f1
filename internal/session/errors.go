package session

import (
	"errors"
	"fmt"
)

// ErrExternalService is the category of failures in collaborators the
// session does not own: file decoding and language-model calls.
var ErrExternalService = errors.New("external service error")

// ExternalServiceError wraps a collaborator failure.
type ExternalServiceError struct {
	Service string // "ingest" or a runtime provider name
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }

// ErrNoPlan is returned when a figure is requested before any chart resolved.
var ErrNoPlan = errors.New("no chart has been resolved")
