package records

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantumcare/clinical/internal/platform/apperr"
	"github.com/quantumcare/clinical/internal/platform/events"
	"github.com/quantumcare/clinical/internal/platform/fhir"
	"github.com/quantumcare/clinical/internal/platform/metrics"
	"github.com/quantumcare/clinical/pkg/fhirmodels"
)

const subjectReferencePath = "resource.subject.reference"

// defaultEventTimeout bounds one event delivery after a committed write.
const defaultEventTimeout = 2 * time.Second

// EventPublisher receives a notification after every committed write.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.ResourceEvent) error
}

type Service struct {
	engine   *fhir.Engine
	store    Store
	resolver *Resolver
	events   EventPublisher
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time

	eventTimeout time.Duration
}

// NewService wires the engine, the store and a linkage resolver over the
// store's Patient repository. cache may be nil.
func NewService(engine *fhir.Engine, store Store, cache PatientCache, logger zerolog.Logger) (*Service, error) {
	patients, err := store.Repository(fhirmodels.ResourceTypePatient)
	if err != nil {
		return nil, fmt.Errorf("patient repository: %w", err)
	}
	return &Service{
		engine:   engine,
		store:    store,
		resolver: NewResolver(patients, cache, logger),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },

		eventTimeout: defaultEventTimeout,
	}, nil
}

// SetEventPublisher attaches an optional publisher for resource events.
func (s *Service) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// SetMetrics attaches optional write counters.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Resolver returns the service's linkage resolver.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

func (s *Service) repo(resourceType string) (*fhir.ResourceSchema, Repository, error) {
	schema, err := s.engine.Registry().SchemaFor(resourceType)
	if err != nil {
		return nil, nil, err
	}
	repo, err := s.store.Repository(resourceType)
	if err != nil {
		return nil, nil, err
	}
	return schema, repo, nil
}

// Create validates and stores a document. Owned types are linked to the
// Patient named by resource.subject.reference.
func (s *Service) Create(ctx context.Context, resourceType string, payload []byte) (*Document, error) {
	schema, repo, err := s.repo(resourceType)
	if err != nil {
		return nil, err
	}
	n, err := s.engine.Normalize(resourceType, payload)
	if err != nil {
		return nil, err
	}

	if schema.OwnedByPatient {
		ref, _ := lookupText(n.Resource, []string{"subject", "reference"})
		if ref == "" {
			return nil, apperr.ValidationFailed([]apperr.FieldIssue{
				{Path: subjectReferencePath, Message: "is required"},
			})
		}
		if _, ok := ExternalPatientID(ref); !ok {
			return nil, apperr.ValidationFailed([]apperr.FieldIssue{
				{Path: subjectReferencePath, Message: "must reference a Patient"},
			})
		}
		if err := s.link(ctx, n, ref); err != nil {
			return nil, err
		}
	}

	return s.insert(ctx, repo, n)
}

// CreateForPatient validates and stores a document owned by the Patient
// whose resource.id is patientExternalID. Any client metaData.patientID is
// replaced. Nothing is written when the Patient cannot be resolved.
func (s *Service) CreateForPatient(ctx context.Context, resourceType, patientExternalID string, payload []byte) (*Document, error) {
	schema, repo, err := s.repo(resourceType)
	if err != nil {
		return nil, err
	}
	if !schema.OwnedByPatient {
		return nil, apperr.InvalidPayload(fmt.Sprintf("%s is not linked to a Patient", resourceType))
	}
	n, err := s.engine.Normalize(resourceType, payload)
	if err != nil {
		return nil, err
	}
	if err := s.link(ctx, n, patientExternalID); err != nil {
		return nil, err
	}
	return s.insert(ctx, repo, n)
}

func (s *Service) link(ctx context.Context, n *fhir.Normalized, ref string) error {
	patientID, err := s.resolver.ResolvePatient(ctx, ref)
	if err != nil {
		return err
	}
	meta, err := StampPatientID(n.MetaData, patientID)
	if err != nil {
		return apperr.InvalidPayload("metaData must be a JSON object")
	}
	n.MetaData = meta
	return nil
}

func (s *Service) insert(ctx context.Context, repo Repository, n *fhir.Normalized) (*Document, error) {
	doc := &Document{MetaData: n.MetaData, Resource: n.Resource}
	if err := repo.Create(ctx, doc); err != nil {
		return nil, err
	}
	s.written(ctx, n.ResourceType, events.ActionCreated, doc)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, resourceType, id string) (*Document, error) {
	_, repo, err := s.repo(resourceType)
	if err != nil {
		return nil, err
	}
	uid, err := parseID(resourceType, id)
	if err != nil {
		return nil, err
	}
	return repo.FindByID(ctx, uid)
}

func (s *Service) List(ctx context.Context, resourceType string) ([]*Document, error) {
	_, repo, err := s.repo(resourceType)
	if err != nil {
		return nil, err
	}
	return repo.FindAll(ctx)
}

// Update swaps the metaData and/or resource parts named in payload. For
// owned types the stored patientID survives a metaData replacement.
func (s *Service) Update(ctx context.Context, resourceType, id string, payload []byte) (*Document, error) {
	schema, repo, err := s.repo(resourceType)
	if err != nil {
		return nil, err
	}
	uid, err := parseID(resourceType, id)
	if err != nil {
		return nil, err
	}
	n, err := s.engine.NormalizePatch(resourceType, payload)
	if err != nil {
		return nil, err
	}

	if schema.OwnedByPatient && n.MetaData != nil {
		current, err := repo.FindByID(ctx, uid)
		if err != nil {
			return nil, err
		}
		if n.MetaData, err = keepLinkage(n.MetaData, current); err != nil {
			return nil, apperr.InvalidPayload("metaData must be a JSON object")
		}
	}

	doc, err := repo.UpdateByID(ctx, uid, Patch{MetaData: n.MetaData, Resource: n.Resource})
	if err != nil {
		return nil, err
	}
	s.written(ctx, resourceType, events.ActionUpdated, doc)
	return doc, nil
}

// Delete removes a document and returns it as it was stored.
func (s *Service) Delete(ctx context.Context, resourceType, id string) (*Document, error) {
	_, repo, err := s.repo(resourceType)
	if err != nil {
		return nil, err
	}
	uid, err := parseID(resourceType, id)
	if err != nil {
		return nil, err
	}
	doc, err := repo.DeleteByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.written(ctx, resourceType, events.ActionDeleted, doc)
	return doc, nil
}

// written records a committed write. Event delivery is best-effort: the
// document is already stored, so failures are only logged.
func (s *Service) written(ctx context.Context, resourceType string, action events.Action, doc *Document) {
	s.metrics.IncrementDocumentsWritten(resourceType, string(action))
	if s.events == nil {
		return
	}
	ev := events.ResourceEvent{
		ResourceType: resourceType,
		Action:       action,
		ID:           doc.ID,
		ResourceID:   doc.ResourceID(),
		PatientID:    doc.PatientID(),
		OccurredAt:   s.now(),
	}
	// Detached from request cancellation and bounded by eventTimeout.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.eventTimeout)
	defer cancel()
	if err := s.events.Publish(pubCtx, ev); err != nil {
		s.logger.Warn().Err(err).
			Str("resource_type", resourceType).
			Str("action", string(action)).
			Str("id", doc.ID.String()).
			Msg("resource event not published")
	}
}

// parseID maps a malformed id to NotFound: no document can carry it.
func parseID(resourceType, id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, apperr.NotFound(fmt.Sprintf("%s not found", resourceType))
	}
	return uid, nil
}
