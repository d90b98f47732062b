package fhir

import (
	"sort"

	"github.com/quantumcare/clinical/internal/platform/apperr"
)

// ResourceSchema is the stored shape of one resource variant: the clinical
// payload plus the server bookkeeping kept alongside it.
type ResourceSchema struct {
	ResourceType string
	// Collection is the storage collection (table) name.
	Collection string
	Resource   *FieldSpec
	MetaData   *FieldSpec
	// OwnedByPatient marks resources whose metaData.patientID links them
	// to a Patient.
	OwnedByPatient bool
}

// Registry resolves resource type names to their schemas.
type Registry struct {
	schemas map[string]*ResourceSchema
}

// NewRegistry returns a registry holding the Patient, Observation,
// DiagnosticReport, Medication and Practitioner schemas.
func NewRegistry() *Registry {
	r := &Registry{schemas: make(map[string]*ResourceSchema)}
	for _, s := range []*ResourceSchema{
		patientSchema(),
		observationSchema(),
		diagnosticReportSchema(),
		medicationSchema(),
		practitionerSchema(),
	} {
		r.schemas[s.ResourceType] = s
	}
	return r
}

// SchemaFor returns the schema for resourceType or an UnknownResourceType error.
func (r *Registry) SchemaFor(resourceType string) (*ResourceSchema, error) {
	s, ok := r.schemas[resourceType]
	if !ok {
		return nil, apperr.UnknownResourceType(resourceType)
	}
	return s, nil
}

// ResourceTypes lists the registered resource type names, sorted.
func (r *Registry) ResourceTypes() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
