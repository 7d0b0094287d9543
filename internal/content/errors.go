package content

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no usable session exists; callers must fail
	// before attempting the network call.
	ErrUnauthenticated = errors.New("content: not authenticated")
	// ErrNotFound means the referenced item no longer exists remotely.
	ErrNotFound = errors.New("content: item not found")
	// ErrSchemaMismatch means the store rejected a field name. It is the only
	// error that triggers the one-shot fallback retry in the draft machine.
	ErrSchemaMismatch = errors.New("content: schema mismatch")
	// ErrTimeout means the bounded request exceeded its deadline. It is
	// surfaced distinctly from ErrNetwork so the user knows a retry may help.
	ErrTimeout = errors.New("content: request timed out")
	// ErrNetwork covers transport-level failures before an HTTP status was
	// received.
	ErrNetwork = errors.New("content: network error")
)

// ServerError carries a message returned by a remote service alongside the
// HTTP status it arrived with.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("content: server error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("content: server error: %s", e.Message)
}

// UserMessage renders an error as the short non-fatal text shown in the
// status footer. Errors never blank the editor; they only produce messages.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "Please log in first"
	case errors.Is(err, ErrTimeout):
		return "Request timed out. Please try again."
	case errors.Is(err, ErrNetwork):
		return "Network error. Check your connection."
	case errors.Is(err, ErrNotFound):
		return "That item no longer exists"
	}
	var srv *ServerError
	if errors.As(err, &srv) && srv.Message != "" {
		return srv.Message
	}
	return err.Error()
}
