// Package errno provides the structured error codes used by the guideline
// assistant. Every failure the service surfaces over HTTP maps to exactly one
// Errno; pipeline code wraps underlying causes with WithCause so the original
// error stays available for logging.
package errno

import (
	"errors"
	"fmt"
	"net/http"
)

// Errno represents a structured error with a stable code, an HTTP status and
// a human-readable message.
type Errno struct {
	// Code is the unique error code.
	Code int `json:"code"`

	// HTTP is the HTTP status code to return.
	HTTP int `json:"-"`

	// Message is the error message returned to the caller.
	Message string `json:"message"`

	cause error
}

// Error implements the error interface.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// WithMessage returns a copy of the Errno with the message replaced.
// The code and HTTP status are preserved so errors.Is still matches.
func (e *Errno) WithMessage(format string, args ...any) *Errno {
	return &Errno{
		Code:    e.Code,
		HTTP:    e.HTTP,
		Message: fmt.Sprintf(format, args...),
		cause:   e.cause,
	}
}

// WithCause returns a copy of the Errno wrapping the given underlying error.
func (e *Errno) WithCause(err error) *Errno {
	return &Errno{
		Code:    e.Code,
		HTTP:    e.HTTP,
		Message: e.Message,
		cause:   err,
	}
}

// Unwrap returns the underlying cause, if any.
func (e *Errno) Unwrap() error { return e.cause }

// Is reports whether target is an Errno with the same code, so
// errors.Is(err, errno.ErrInvalidInput) matches derived copies.
func (e *Errno) Is(target error) bool {
	var t *Errno
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status for an arbitrary error, defaulting to
// 500 for anything that is not an Errno.
func HTTPStatus(err error) int {
	var e *Errno
	if errors.As(err, &e) {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

// CodeOf returns the error code for an arbitrary error, defaulting to
// ErrInternal's code.
func CodeOf(err error) int {
	var e *Errno
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal.Code
}

// Error code format: ABBB. A is the failure domain (1 config, 2 client input,
// 3 ingestion, 4 query, 5 internal), BBB is the sequence within the domain.
var (
	// ErrConfiguration indicates an unresolvable storage mode or invalid
	// chunking parameters. Fatal, never retried.
	ErrConfiguration = &Errno{Code: 1001, HTTP: http.StatusInternalServerError, Message: "Invalid configuration"}

	// ErrInvalidInput indicates an empty question or empty embedding text.
	ErrInvalidInput = &Errno{Code: 2001, HTTP: http.StatusBadRequest, Message: "Invalid input"}

	// ErrDocumentRead indicates an unreadable or corrupt input document.
	ErrDocumentRead = &Errno{Code: 2002, HTTP: http.StatusBadRequest, Message: "Failed to read document"}

	// ErrEmbeddingCountMismatch indicates the embedding provider returned a
	// different number of vectors than the non-empty inputs. The whole ingest
	// call is aborted; the caller should retry the entire ingest.
	ErrEmbeddingCountMismatch = &Errno{Code: 3001, HTTP: http.StatusInternalServerError, Message: "Embedding count mismatch"}

	// ErrDimensionConflict indicates an existing collection was created with a
	// different vector width than the configured embedding model produces.
	// Requires operator action (a new collection name); never auto-resolved.
	ErrDimensionConflict = &Errno{Code: 3002, HTTP: http.StatusInternalServerError, Message: "Collection dimension conflict"}

	// ErrGenerationFailed indicates the chat provider failed during answer
	// synthesis. There is no safe canned answer once categories were deemed
	// supported, so this propagates.
	ErrGenerationFailed = &Errno{Code: 4001, HTTP: http.StatusInternalServerError, Message: "Answer generation failed"}

	// ErrQueryTimeout indicates a query exceeded the handler deadline.
	ErrQueryTimeout = &Errno{Code: 4002, HTTP: http.StatusRequestTimeout, Message: "Query timed out"}

	// ErrInternal is the fallback for unclassified failures.
	ErrInternal = &Errno{Code: 5000, HTTP: http.StatusInternalServerError, Message: "Internal server error"}
)
