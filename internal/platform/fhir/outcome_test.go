package fhir

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumcare/clinical/internal/platform/apperr"
)

func TestOutcomeFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid payload", apperr.InvalidPayload("missing resource"), http.StatusBadRequest, IssueTypeStructure},
		{"unknown type", apperr.UnknownResourceType("Encounter"), http.StatusBadRequest, IssueTypeNotSupported},
		{"missing report", apperr.MissingDiagnosticReport(), http.StatusBadRequest, IssueTypeRequired},
		{"not found", apperr.PatientNotFound("p-1"), http.StatusNotFound, IssueTypeNotFound},
		{"persistence", apperr.Persistence("insert patient", errors.New("conn reset")), http.StatusInternalServerError, IssueTypeException},
		{"upstream", apperr.Upstream("generateContent", errors.New("503")), http.StatusBadGateway, IssueTypeTransient},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, IssueTypeException},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, oo := OutcomeFromError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, "OperationOutcome", oo.ResourceType)
			require.Len(t, oo.Issue, 1)
			assert.Equal(t, tt.code, oo.Issue[0].Code)
			assert.True(t, oo.HasErrors())
		})
	}
}

func TestOutcomeFromError_HidesServerCauses(t *testing.T) {
	_, oo := OutcomeFromError(apperr.Persistence("insert patient", errors.New("password authentication failed")))
	assert.NotContains(t, oo.Issue[0].Diagnostics, "password")

	_, oo = OutcomeFromError(apperr.Upstream("generateContent", errors.New("api key invalid")))
	assert.NotContains(t, oo.Issue[0].Diagnostics, "api key")
}

func TestOutcomeFromError_ValidationIssues(t *testing.T) {
	err := apperr.ValidationFailed([]apperr.FieldIssue{
		{Path: "resource.code", Message: "is required"},
		{Path: "resource.colour", Message: "is not a permitted field"},
	})

	status, oo := OutcomeFromError(err)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, oo.Issue, 2)
	assert.Equal(t, IssueTypeRequired, oo.Issue[0].Code)
	assert.Equal(t, []string{"resource.code"}, oo.Issue[0].Expression)
	assert.Equal(t, IssueTypeInvalid, oo.Issue[1].Code)
	assert.Equal(t, "resource.colour: is not a permitted field", oo.Issue[1].Diagnostics)
}

func TestStatusOutcome(t *testing.T) {
	assert.Equal(t, IssueTypeNotFound, StatusOutcome(http.StatusNotFound, "Not Found").Issue[0].Code)
	assert.Equal(t, IssueTypeNotSupported, StatusOutcome(http.StatusMethodNotAllowed, "Method Not Allowed").Issue[0].Code)
	assert.Equal(t, IssueTypeTooCostly, StatusOutcome(http.StatusRequestEntityTooLarge, "too large").Issue[0].Code)
	assert.Equal(t, IssueTypeTimeout, StatusOutcome(http.StatusServiceUnavailable, "timeout").Issue[0].Code)

	oo := StatusOutcome(http.StatusInternalServerError, "secret detail")
	assert.Equal(t, IssueSeverityFatal, oo.Issue[0].Severity)
	assert.NotContains(t, oo.Issue[0].Diagnostics, "secret")
}
