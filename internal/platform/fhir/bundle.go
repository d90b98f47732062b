package fhir

import (
	"encoding/json"

	"github.com/quantumcare/clinical/internal/platform/apperr"
)

// Bundle represents the subset of a FHIR Bundle the service reads.
type Bundle struct {
	ResourceType string        `json:"resourceType,omitempty"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type,omitempty"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// ResourceType returns the entry's resource.resourceType, or "".
func (e BundleEntry) ResourceType() string {
	return StringMember(e.Resource, "resourceType")
}

// invalidBundle is the single diagnostic for any structurally bad bundle.
const invalidBundle = "Invalid payload format"

// ParseBundle decodes a bundle body. The body must be a JSON object whose
// entry member is an array of objects each carrying an object resource.
func ParseBundle(payload []byte) (*Bundle, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil || top == nil {
		return nil, apperr.InvalidPayload(invalidBundle)
	}

	var rawEntries []json.RawMessage
	if err := json.Unmarshal(top["entry"], &rawEntries); err != nil || rawEntries == nil {
		return nil, apperr.InvalidPayload(invalidBundle)
	}

	b := &Bundle{
		ResourceType: StringMember(payload, "resourceType"),
		ID:           StringMember(payload, "id"),
		Type:         StringMember(payload, "type"),
		Entry:        make([]BundleEntry, 0, len(rawEntries)),
	}
	for _, raw := range rawEntries {
		var entry map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entry); err != nil || entry == nil {
			return nil, apperr.InvalidPayload(invalidBundle)
		}
		var resource map[string]json.RawMessage
		if err := json.Unmarshal(entry["resource"], &resource); err != nil || resource == nil {
			return nil, apperr.InvalidPayload(invalidBundle)
		}
		b.Entry = append(b.Entry, BundleEntry{
			FullURL:  StringMember(raw, "fullUrl"),
			Resource: entry["resource"],
		})
	}
	return b, nil
}
