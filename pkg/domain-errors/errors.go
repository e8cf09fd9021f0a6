// Package domainerrors defines the typed error model shared by every service.
//
// Services return *Error values; transports translate Code into a status with
// ToHTTPStatus. Stores never construct these directly, they return sentinel
// errors (see pkg/platform/sentinel) which services translate.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code classifies an error for callers and transports.
type Code string

const (
	// Core registry error kinds.
	CodeValidation         Code = "validation_error"
	CodeNotFound           Code = "not_found"
	CodeDuplicateKey       Code = "duplicate_key"
	CodePartialApplication Code = "partial_application"

	// Model constructors report broken invariants with this code; services
	// convert it to CodeValidation before returning.
	CodeInvariantViolation Code = "invariant_violation"

	// Transport and infrastructure codes.
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"
)

// Error is the domain error carried across service boundaries.
type Error struct {
	Code    Code
	Message string
	// Field names the offending input for validation and duplicate errors.
	Field string
	// EntityID identifies the missing or conflicting record when known.
	EntityID string
	// Applied lists the sub-writes that committed before a failure when the
	// persistence collaborator could not roll them back.
	Applied []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field=%s)", e.Field)
	}
	if e.EntityID != "" {
		fmt.Fprintf(&b, " (id=%s)", e.EntityID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports equality on code and message so tests can use errors.Is with a
// freshly constructed expected value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates an error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// Validation reports bad input on a named field.
func Validation(field, msg string) error {
	return &Error{Code: CodeValidation, Message: msg, Field: field}
}

// NotFound reports a missing entity by kind and id.
func NotFound(entity, id string) error {
	return &Error{Code: CodeNotFound, Message: entity + " not found", EntityID: id}
}

// Duplicate reports a uniqueness violation on a named field.
func Duplicate(field, msg string) error {
	return &Error{Code: CodeDuplicateKey, Message: msg, Field: field}
}

// Invariant reports a broken model invariant on a named field.
func Invariant(field, msg string) error {
	return &Error{Code: CodeInvariantViolation, Message: msg, Field: field}
}

// InvariantToValidation converts a model invariant violation into a
// validation error for callers, keeping field and message. Other errors are
// returned unchanged.
func InvariantToValidation(err error) error {
	de, ok := As(err)
	if !ok || de.Code != CodeInvariantViolation {
		return err
	}
	return &Error{Code: CodeValidation, Message: de.Message, Field: de.Field, EntityID: de.EntityID}
}

// Partial reports that op failed after some sub-writes were applied.
func Partial(op string, applied []string, cause error) error {
	return &Error{
		Code:    CodePartialApplication,
		Message: op + " partially applied",
		Applied: append([]string(nil), applied...),
		Err:     cause,
	}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest, CodeInvalidInput, CodeInvariantViolation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicateKey, CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
