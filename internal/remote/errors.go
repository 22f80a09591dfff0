package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable means the history store is disabled or unreachable.
	// Callers recover locally.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrAuthExpired means the server rejected the bearer token.
	ErrAuthExpired = errors.New("session expired")
)

// APIError represents a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("api error: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("api error: %s (%d)", e.Code, e.Status)
	}
	if e.Message != "" {
		return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

// Is maps status codes onto the package sentinels so callers can use
// errors.Is(err, ErrAuthExpired) without inspecting statuses.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthExpired:
		return e.Status == http.StatusUnauthorized
	case ErrUnavailable:
		return e.Status == http.StatusServiceUnavailable
	}
	return false
}

type apiErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// IsAuthExpired reports whether err carries a 401.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}

// IsNotFound reports whether err carries a 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsUnavailable reports whether err means the store cannot be reached or is
// switched off.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
