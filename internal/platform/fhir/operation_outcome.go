package fhir

// OperationOutcome severity levels per FHIR R4 spec.
const (
	IssueSeverityFatal       = "fatal"
	IssueSeverityError       = "error"
	IssueSeverityWarning     = "warning"
	IssueSeverityInformation = "information"
)

// OperationOutcome issue type codes used by the service.
const (
	IssueTypeInvalid      = "invalid"
	IssueTypeStructure    = "structure"
	IssueTypeRequired     = "required"
	IssueTypeNotFound     = "not-found"
	IssueTypeNotSupported = "not-supported"
	IssueTypeProcessing   = "processing"
	IssueTypeException    = "exception"
	IssueTypeTransient    = "transient"
	IssueTypeTimeout      = "timeout"
	IssueTypeTooCostly    = "too-costly"
)

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

// HasErrors returns true if the outcome contains any error or fatal issues.
func (o *OperationOutcome) HasErrors() bool {
	for _, issue := range o.Issue {
		if issue.Severity == IssueSeverityError || issue.Severity == IssueSeverityFatal {
			return true
		}
	}
	return false
}

func NotFoundOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, diagnostics)
}

// InternalErrorOutcome creates an OperationOutcome for internal server errors.
func InternalErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityFatal, IssueTypeException, diagnostics)
}
