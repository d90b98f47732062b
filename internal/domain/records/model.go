package records

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/quantumcare/clinical/internal/platform/fhir"
)

// Document is a stored resource: the clinical payload plus server
// bookkeeping. Its JSON form is the wire shape returned to clients.
type Document struct {
	ID        uuid.UUID       `json:"_id"`
	MetaData  json.RawMessage `json:"metaData"`
	Resource  json.RawMessage `json:"resource"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ResourceID returns the client-assigned resource.id, or "".
func (d *Document) ResourceID() string {
	return fhir.StringMember(d.Resource, "id")
}

// PatientID returns metaData.patientID, or "" for unowned documents.
func (d *Document) PatientID() string {
	return fhir.StringMember(d.MetaData, "patientID")
}

// Patch replaces whole top-level parts of a document. A nil part is left
// unchanged.
type Patch struct {
	MetaData json.RawMessage
	Resource json.RawMessage
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.MetaData == nil && p.Resource == nil
}

// Predicate matches documents whose resource member at Path is the string
// Value. Path names nested object members, outermost first.
type Predicate struct {
	Path  []string
	Value string
}

// ResourceField builds a predicate on a resource member path.
func ResourceField(value string, path ...string) Predicate {
	return Predicate{Path: path, Value: value}
}
