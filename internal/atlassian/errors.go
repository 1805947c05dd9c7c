package atlassian

import (
	"fmt"
	"strings"
)

// ValidationError reports a caller-supplied parameter that violates a
// precondition. It is always returned before any network I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthConfigError reports an unusable authentication setup detected while
// constructing a session.
type AuthConfigError struct {
	Mode   AuthMode
	Reason string
}

func (e *AuthConfigError) Error() string {
	return fmt.Sprintf("auth mode %q: %s", string(e.Mode), e.Reason)
}

// MissingConfigError reports a required configuration input that is absent.
type MissingConfigError struct {
	Name string
}

func (e *MissingConfigError) Error() string {
	return "missing required configuration: " + e.Name
}

// RemoteAPIError is returned for every response whose status is not 200.
type RemoteAPIError struct {
	StatusCode int
	Body       string
	Path       string
}

func (e *RemoteAPIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("GET %s failed [%d]", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("GET %s failed [%d]: %s", e.Path, e.StatusCode, body)
}
