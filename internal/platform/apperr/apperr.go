// Package apperr defines the error taxonomy shared by the validation engine,
// the persistence gateway and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindInvalidPayload          Kind = "invalid_payload"
	KindValidationFailed        Kind = "validation_failed"
	KindUnknownResourceType     Kind = "unknown_resource_type"
	KindMissingDiagnosticReport Kind = "missing_diagnostic_report"
	KindNotFound                Kind = "not_found"
	KindPersistence             Kind = "persistence_error"
	KindUpstream                Kind = "upstream_service_error"
)

// ErrNotFound is returned (optionally wrapped) by stores when no document matches.
var ErrNotFound = errors.New("not found")

// Error is an application error carrying a Kind and, for validation
// failures, the offending field paths.
type Error struct {
	Kind    Kind
	Message string
	Issues  []FieldIssue
	Err     error
}

// FieldIssue names a single offending field path.
type FieldIssue struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) match not-found application errors.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

func InvalidPayload(msg string) *Error {
	return &Error{Kind: KindInvalidPayload, Message: msg}
}

func ValidationFailed(issues []FieldIssue) *Error {
	msg := "validation failed"
	if len(issues) > 0 {
		msg = fmt.Sprintf("validation failed: %s: %s", issues[0].Path, issues[0].Message)
		if len(issues) > 1 {
			msg += fmt.Sprintf(" (and %d more)", len(issues)-1)
		}
	}
	return &Error{Kind: KindValidationFailed, Message: msg, Issues: issues}
}

func UnknownResourceType(resourceType string) *Error {
	return &Error{Kind: KindUnknownResourceType, Message: fmt.Sprintf("unknown resource type %q", resourceType)}
}

func MissingDiagnosticReport() *Error {
	return &Error{Kind: KindMissingDiagnosticReport, Message: "DiagnosticReport not found in payload"}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// PatientNotFound is the linkage failure for an unresolvable patient external id.
func PatientNotFound(externalID string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("Patient %q not found", externalID)}
}

// Persistence wraps an arbitrary store failure without inspecting it.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: op, Err: err}
}

func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// KindOf reports the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidPayload, KindValidationFailed, KindUnknownResourceType, KindMissingDiagnosticReport:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
