package sengled

import (
	"fmt"
	"strings"
)

// ErrTokenUnavailable is returned when discovery runs before a successful login.
var ErrTokenUnavailable = PreconditionError{Reason: "access token is not available; login must succeed first"}

// AuthenticationError reports a failed login.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return "failed to log in to Sengled service: " + e.Err.Error()
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// PreconditionError reports a stage started without its required input.
type PreconditionError struct {
	Reason string
}

func (e PreconditionError) Error() string {
	return e.Reason
}

// DiscoveryError reports a failed device listing.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string {
	return "failed to fetch devices from Sengled service: " + e.Err.Error()
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-2xx response from the Sengled API.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("sengled api error %d: %s", e.Status, strings.TrimSpace(e.Body))
}
