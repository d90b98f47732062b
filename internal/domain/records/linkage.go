package records

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantumcare/clinical/internal/platform/apperr"
	"github.com/quantumcare/clinical/internal/platform/fhir"
	"github.com/quantumcare/clinical/pkg/fhirmodels"
)

const patientIDField = "patientID"

// PatientCache remembers resolved patient identities between requests.
type PatientCache interface {
	Lookup(ctx context.Context, externalID string) (uuid.UUID, bool, error)
	Remember(ctx context.Context, externalID string, id uuid.UUID) error
	Forget(ctx context.Context, externalID string) error
}

// Resolver maps a Patient's client-assigned resource.id to the internal
// identity of the stored Patient document.
type Resolver struct {
	patients Repository
	cache    PatientCache
	logger   zerolog.Logger
}

// NewResolver returns a resolver over the Patient repository. cache may be nil.
func NewResolver(patients Repository, cache PatientCache, logger zerolog.Logger) *Resolver {
	return &Resolver{patients: patients, cache: cache, logger: logger}
}

// ExternalPatientID accepts a bare id ("p-001") or a reference
// ("Patient/p-001", "https://host/fhir/Patient/p-001/_history/2") and
// returns the id. ok is false for a reference to any other resource type.
func ExternalPatientID(ref string) (id string, ok bool) {
	ref = strings.TrimSpace(ref)
	if !strings.Contains(ref, "/") {
		return ref, true
	}
	segments := strings.Split(ref, "/")
	for i := len(segments) - 2; i >= 0; i-- {
		if segments[i] == fhirmodels.ResourceTypePatient {
			return segments[i+1], true
		}
	}
	return "", false
}

// ResolvePatient returns the internal id of the Patient whose resource.id
// matches ref, or a PatientNotFound error.
func (r *Resolver) ResolvePatient(ctx context.Context, ref string) (uuid.UUID, error) {
	externalID, ok := ExternalPatientID(ref)
	if !ok || externalID == "" {
		return uuid.Nil, apperr.PatientNotFound(ref)
	}

	if id, ok := r.cachedPatient(ctx, externalID); ok {
		return id, nil
	}

	doc, err := r.patients.FindOne(ctx, ResourceField(externalID, "id"))
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return uuid.Nil, apperr.PatientNotFound(externalID)
		}
		return uuid.Nil, err
	}

	if r.cache != nil {
		if err := r.cache.Remember(ctx, externalID, doc.ID); err != nil {
			r.logger.Warn().Err(err).Str("patient", externalID).Msg("linkage cache write failed")
		}
	}
	return doc.ID, nil
}

// cachedPatient returns a cache hit only after confirming the document
// still exists and still carries the same resource.id.
func (r *Resolver) cachedPatient(ctx context.Context, externalID string) (uuid.UUID, bool) {
	if r.cache == nil {
		return uuid.Nil, false
	}
	id, ok, err := r.cache.Lookup(ctx, externalID)
	if err != nil {
		r.logger.Warn().Err(err).Str("patient", externalID).Msg("linkage cache read failed")
		return uuid.Nil, false
	}
	if !ok {
		return uuid.Nil, false
	}

	doc, err := r.patients.FindByID(ctx, id)
	if err == nil && doc.ResourceID() == externalID {
		return id, true
	}

	r.logger.Debug().Str("patient", externalID).Msg("stale linkage cache entry")
	if err := r.cache.Forget(ctx, externalID); err != nil {
		r.logger.Warn().Err(err).Str("patient", externalID).Msg("linkage cache delete failed")
	}
	return uuid.Nil, false
}

// StampPatientID returns metaData with patientID set to id, overwriting any
// client-supplied value.
func StampPatientID(metaData json.RawMessage, id uuid.UUID) (json.RawMessage, error) {
	return fhir.SetMember(metaData, patientIDField, id.String())
}

// keepLinkage carries the stored patientID over into a replacement
// metaData so clients cannot relink a document through an update.
func keepLinkage(replacement json.RawMessage, current *Document) (json.RawMessage, error) {
	if pid := current.PatientID(); pid != "" {
		return fhir.SetMember(replacement, patientIDField, pid)
	}
	return fhir.DeleteMember(replacement, patientIDField)
}
