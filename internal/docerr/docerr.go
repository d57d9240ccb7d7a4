// Package docerr defines the error values reported by the document store.
//
// Every error carries an HTTP-style status, a short machine name and a human
// message. Batch-level errors (MissingBulkDocs, NotAnObject, InvalidRev in
// import mode) fail a whole call; the rest are reported per item.
package docerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a document store error.
type Error struct {
	Status  int    `json:"status"`
	Name    string `json:"error"`
	Message string `json:"reason"`
	// Reason refines Message without changing identity, e.g. the offending
	// revision string.
	Reason string `json:"-"`
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Name, e.Message, e.Reason)
	}

	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Is reports whether target is the same kind of error.
// Copies made by WithReason still match their base value.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return e.Name == t.Name && e.Message == t.Message && e.Status == t.Status
}

// WithReason returns a copy of e carrying reason.
func (e *Error) WithReason(reason string) *Error {
	c := *e
	c.Reason = reason

	return &c
}

// WithMessage returns a copy of e with its message replaced.
// The copy no longer matches e under errors.Is.
func (e *Error) WithMessage(msg string) *Error {
	c := *e
	c.Message = msg

	return &c
}

// Known errors.
var (
	ErrMissingBulkDocs = &Error{
		Status:  http.StatusBadRequest,
		Name:    "bad_request",
		Message: "Missing JSON list of 'docs'",
	}
	ErrNotAnObject = &Error{
		Status:  http.StatusBadRequest,
		Name:    "bad_request",
		Message: "Document must be a JSON object",
	}
	ErrReservedID = &Error{
		Status:  http.StatusBadRequest,
		Name:    "bad_request",
		Message: "Only reserved document ids may start with underscore.",
	}
	ErrInvalidRev = &Error{
		Status:  http.StatusBadRequest,
		Name:    "bad_request",
		Message: "Invalid rev format",
	}
	ErrMissingID = &Error{
		Status:  http.StatusPreconditionFailed,
		Name:    "missing_id",
		Message: "_id is required for puts",
	}
	ErrDocValidation = &Error{
		Status:  http.StatusInternalServerError,
		Name:    "doc_validation",
		Message: "Bad special document member",
	}
	ErrConflict = &Error{
		Status:  http.StatusConflict,
		Name:    "conflict",
		Message: "Document update conflict",
	}
	ErrMissingDoc = &Error{
		Status:  http.StatusNotFound,
		Name:    "not_found",
		Message: "missing",
	}
	ErrDeletedDoc = &Error{
		Status:  http.StatusNotFound,
		Name:    "not_found",
		Message: "deleted",
	}
	ErrUnauthorized = &Error{
		Status:  http.StatusUnauthorized,
		Name:    "unauthorized",
		Message: "Name or password is incorrect.",
	}
	ErrForbidden = &Error{
		Status:  http.StatusForbidden,
		Name:    "forbidden",
		Message: "Forbidden by design document validate_doc_update function",
	}
	ErrBadRequest = &Error{
		Status:  http.StatusBadRequest,
		Name:    "bad_request",
		Message: "Something wrong with the request",
	}
)

// From converts err into an *Error. Non-store errors become a 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return &Error{
		Status:  http.StatusInternalServerError,
		Name:    "internal_error",
		Message: err.Error(),
	}
}
