package conversation

import (
	"errors"

	"github.com/adamavenir/coverchat/internal/remote"
)

// Validation errors are returned before any network call.
var (
	ErrNoSession        = errors.New("enter an access code to start chatting")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrEmptyTitle       = errors.New("title is empty")
	ErrThreadUnused     = errors.New("send a message before starting a new conversation")
	ErrUnknownThread    = errors.New("unknown thread")
	ErrUnknownMessage   = errors.New("unknown or unrated message")
	ErrInvalidFeedback  = errors.New("feedback must be up, down or none")
	ErrFeedbackInFlight = errors.New("feedback update already in progress")
	ErrClosed           = errors.New("conversation closed")
)

// ErrAuthExpired is returned when the server rejected the session. The
// session has already been expired by the time it is returned.
var ErrAuthExpired = remote.ErrAuthExpired

// OperationError reports a reachable remote that refused a send, delete,
// feedback or rename. Local optimistic state has been kept or reverted.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return e.Op + " failed: " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Retryable is always true; nothing here is fatal.
func (e *OperationError) Retryable() bool {
	return true
}

func opError(op string, err error) error {
	return &OperationError{Op: op, Err: err}
}
