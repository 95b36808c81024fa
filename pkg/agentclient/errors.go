package agentclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnreachable is matched by every transport failure.
	ErrUnreachable = errors.New("agent unreachable")

	// ErrNotFound is matched when the agent answers 404.
	ErrNotFound = errors.New("not found on agent")

	// ErrRejected is matched when the agent refuses the credential.
	ErrRejected = errors.New("agent rejected credential")

	// ErrInvalidEndpoint is returned for endpoints that cannot form a URL.
	ErrInvalidEndpoint = errors.New("invalid agent endpoint")

	// ErrDecode is returned when the agent response cannot be decoded.
	ErrDecode = errors.New("failed to decode agent response")
)

// UnreachableError is a failure to get any response from an agent.
type UnreachableError struct {
	Endpoint string
	Err      error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("agent %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *UnreachableError) Unwrap() []error {
	return []error{ErrUnreachable, e.Err}
}

// StatusError is a non-2xx answer from an agent.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("agent %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("agent %s returned status %s", e.Endpoint, http.StatusText(e.StatusCode))
}

// Is maps well-known status codes onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrRejected:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}
