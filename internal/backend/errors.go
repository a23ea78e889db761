package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure classes every backend call is reduced to.
var (
	// ErrNetwork covers transport errors, timeouts and unreadable bodies.
	ErrNetwork = errors.New("backend unreachable")
	// ErrAuth covers 401/403 responses and semantically invalid tokens.
	ErrAuth = errors.New("backend rejected credentials")
)

// StatusError is a response the backend refused, carrying its {error}
// message when one was sent. 401 and 403 match ErrAuth.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrAuth &&
		(e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// Message returns the backend-provided message carried by err, or fallback.
func Message(err error, fallback string) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}

// IsAuth reports whether err is an authentication failure
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsNetwork reports whether err is a transport-level failure
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}
