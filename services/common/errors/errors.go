package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Error represents an application error returned to HTTP callers.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func BadRequest(message string) *Error { return New(http.StatusBadRequest, message, nil) }
func NotFound(message string) *Error   { return New(http.StatusNotFound, message, nil) }

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, "Internal server error", err)
}

// Respond writes err as a JSON body. Non-*Error values become a 500 without
// leaking their text.
func Respond(c *gin.Context, err error) {
	appErr, ok := err.(*Error)
	if !ok {
		appErr = Internal(err)
	}
	c.AbortWithStatusJSON(appErr.Code, appErr)
}

// SourceReadError means the CSV source stream failed mid-read. No further
// batches are produced for the file; batches already published stay on the
// queue.
type SourceReadError struct {
	Line int
	Err  error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("source read failed after line %d: %v", e.Line, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// PublishError reports a batch the queue did not fully accept. Failed holds
// the entry ordinals that were not acknowledged; on a whole-call failure it
// holds every ordinal of the batch.
type PublishError struct {
	Failed []string
	Err    error
}

func (e *PublishError) Error() string {
	msg := fmt.Sprintf("publish failed for entries [%s]", strings.Join(e.Failed, ","))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PublishError) Unwrap() error { return e.Err }

// ValidationError marks a queue message that can never become valid. It is
// terminal for that message and is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid product row: " + e.Reason }

// CommitError means the atomic product/stock write failed. It is retryable
// through queue redelivery.
type CommitError struct {
	Code string
	Err  error
}

func (e *CommitError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("commit failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("commit failed: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// NotifyError means the completion event could not be published after a
// successful commit. It is retryable like CommitError.
type NotifyError struct {
	ProductID string
	Err       error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify failed for product %s: %v", e.ProductID, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// IsRetryable reports whether err should leave a queue delivery for
// redelivery.
func IsRetryable(err error) bool {
	switch err.(type) {
	case *CommitError, *NotifyError:
		return true
	}
	if u, ok := err.(interface{ Unwrap() error }); ok && u.Unwrap() != nil {
		return IsRetryable(u.Unwrap())
	}
	return false
}
