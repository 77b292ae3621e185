package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the backend rejected the bearer token. The token
	// has already been cleared when this is returned.
	ErrUnauthorized = errors.New("authentication required")
	// ErrSubscriptionRequired means a premium-gated action was refused,
	// either locally or by the backend (402/403).
	ErrSubscriptionRequired = errors.New("premium subscription required")
	// ErrValidation marks input rejected before any network call.
	ErrValidation = errors.New("validation failed")
	// ErrDocumentNotLoaded blocks chat sends until a document is ready.
	ErrDocumentNotLoaded = errors.New("document not loaded")
	// ErrNoSession is returned by authenticated operations when no token is stored.
	ErrNoSession = errors.New("not signed in")
)

// StatusError is any other non-2xx backend response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: backend returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
