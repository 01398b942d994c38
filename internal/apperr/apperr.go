// Package apperr defines the typed application errors shared by every
// service. Services return these instead of raw gorm/adapter errors so the
// transport layer can map them to HTTP status codes in one place.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the error class. The zero value is KindInternal.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindTranscription
	KindExtraction
)

// Error carries a kind, a caller-safe message and optional structured
// details (e.g. store-layer constraint info). The wrapped cause, if any,
// is logged but never serialized.
type Error struct {
	Kind    Kind
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Status maps the error kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindTranscription, KindExtraction:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Name returns the taxonomy name used in the error envelope.
func (e *Error) Name() string {
	switch e.Kind {
	case KindValidation:
		return "ValidationError"
	case KindUnauthenticated:
		return "UnauthenticatedError"
	case KindForbidden:
		return "ForbiddenError"
	case KindNotFound:
		return "NotFoundError"
	case KindConflict:
		return "ConflictError"
	case KindTranscription:
		return "TranscriptionError"
	case KindExtraction:
		return "ExtractionError"
	default:
		return "InternalError"
	}
}

func Validation(msg string) *Error      { return &Error{Kind: KindValidation, Message: msg} }
func Unauthenticated(msg string) *Error { return &Error{Kind: KindUnauthenticated, Message: msg} }
func Forbidden(msg string) *Error       { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error        { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error        { return &Error{Kind: KindConflict, Message: msg} }
func Transcription(msg string, cause error) *Error {
	return &Error{Kind: KindTranscription, Message: msg, cause: cause}
}
func Extraction(msg string, cause error) *Error {
	return &Error{Kind: KindExtraction, Message: msg, cause: cause}
}

// Internal wraps an unexpected error with a sanitized message. The cause is
// kept for logs only.
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, cause: cause}
}

// Internalf is Internal with a formatted message.
func Internalf(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithDetails attaches structured details and returns the same error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// From extracts an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("internal server error", err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
