package fhir

import (
	"errors"
	"net/http"

	"github.com/quantumcare/clinical/internal/platform/apperr"
)

// Generic diagnostics for server-side failures. The cause stays in the logs.
const (
	internalDiagnostics = "internal server error"
	upstreamDiagnostics = "language model service unavailable"
)

// OutcomeFromError maps an error to its HTTP status and OperationOutcome.
// Errors that are not *apperr.Error are treated as internal failures.
func OutcomeFromError(err error) (int, *OperationOutcome) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, InternalErrorOutcome(internalDiagnostics)
	}

	status := apperr.HTTPStatus(err)
	switch appErr.Kind {
	case apperr.KindValidationFailed:
		return status, validationOutcome(appErr)
	case apperr.KindInvalidPayload:
		return status, NewOperationOutcome(IssueSeverityError, IssueTypeStructure, appErr.Message)
	case apperr.KindUnknownResourceType:
		return status, NewOperationOutcome(IssueSeverityError, IssueTypeNotSupported, appErr.Message)
	case apperr.KindMissingDiagnosticReport:
		return status, NewOperationOutcome(IssueSeverityError, IssueTypeRequired, appErr.Message)
	case apperr.KindNotFound:
		return status, NotFoundOutcome(appErr.Message)
	case apperr.KindUpstream:
		return status, NewOperationOutcome(IssueSeverityError, IssueTypeTransient, upstreamDiagnostics)
	default:
		return http.StatusInternalServerError, InternalErrorOutcome(internalDiagnostics)
	}
}

// StatusOutcome builds an outcome for a bare HTTP status, such as echo's
// routing errors (404, 405) or middleware rejections (413, 503).
func StatusOutcome(status int, message string) *OperationOutcome {
	if status >= http.StatusInternalServerError {
		switch status {
		case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return NewOperationOutcome(IssueSeverityError, IssueTypeTimeout, message)
		}
		return InternalErrorOutcome(internalDiagnostics)
	}

	code := IssueTypeProcessing
	switch status {
	case http.StatusNotFound:
		code = IssueTypeNotFound
	case http.StatusMethodNotAllowed:
		code = IssueTypeNotSupported
	case http.StatusRequestEntityTooLarge:
		code = IssueTypeTooCostly
	case http.StatusBadRequest, http.StatusUnsupportedMediaType:
		code = IssueTypeStructure
	}
	return NewOperationOutcome(IssueSeverityError, code, message)
}

func validationOutcome(e *apperr.Error) *OperationOutcome {
	if len(e.Issues) == 0 {
		return NewOperationOutcome(IssueSeverityError, IssueTypeInvalid, e.Message)
	}
	oo := &OperationOutcome{ResourceType: "OperationOutcome"}
	for _, fi := range e.Issues {
		code := IssueTypeInvalid
		if fi.Message == "is required" {
			code = IssueTypeRequired
		}
		oo.Issue = append(oo.Issue, OperationOutcomeIssue{
			Severity:    IssueSeverityError,
			Code:        code,
			Diagnostics: fi.Path + ": " + fi.Message,
			Expression:  []string{fi.Path},
		})
	}
	return oo
}
