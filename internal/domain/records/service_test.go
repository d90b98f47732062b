package records

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumcare/clinical/internal/platform/apperr"
	"github.com/quantumcare/clinical/internal/platform/events"
	"github.com/quantumcare/clinical/internal/platform/fhir"
	"github.com/quantumcare/clinical/internal/platform/metrics"
)

type recordingPublisher struct {
	events []events.ResourceEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.ResourceEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

// stalledPublisher blocks until its context ends, like a writer whose
// broker never answers.
type stalledPublisher struct {
	err error
}

func (p *stalledPublisher) Publish(ctx context.Context, _ events.ResourceEvent) error {
	<-ctx.Done()
	p.err = ctx.Err()
	return p.err
}

// failingRepo fails every call with a raw driver error.
type failingRepo struct{}

var errDriver = errors.New("connection refused")

func (failingRepo) Create(context.Context, *Document) error { return apperr.Persistence("insert", errDriver) }
func (failingRepo) FindByID(context.Context, uuid.UUID) (*Document, error) {
	return nil, apperr.Persistence("select", errDriver)
}
func (failingRepo) FindAll(context.Context) ([]*Document, error) {
	return nil, apperr.Persistence("select", errDriver)
}
func (failingRepo) FindOne(context.Context, Predicate) (*Document, error) {
	return nil, apperr.Persistence("select", errDriver)
}
func (failingRepo) UpdateByID(context.Context, uuid.UUID, Patch) (*Document, error) {
	return nil, apperr.Persistence("update", errDriver)
}
func (failingRepo) DeleteByID(context.Context, uuid.UUID) (*Document, error) {
	return nil, apperr.Persistence("delete", errDriver)
}

type failingStore struct{}

func (failingStore) Repository(string) (Repository, error) { return failingRepo{}, nil }

func newTestService(t *testing.T) (*Service, Store) {
	t.Helper()
	registry := fhir.NewRegistry()
	store := NewMemoryStore(registry)
	svc, err := NewService(fhir.NewEngine(registry), store, nil, zerolog.Nop())
	require.NoError(t, err)
	return svc, store
}

func createPatient(t *testing.T, svc *Service, externalID string) *Document {
	t.Helper()
	doc, err := svc.Create(context.Background(), "Patient", []byte(`{"resource":{"id":"`+externalID+`"}}`))
	require.NoError(t, err)
	return doc
}

func count(t *testing.T, store Store, resourceType string) int {
	t.Helper()
	repo, err := store.Repository(resourceType)
	require.NoError(t, err)
	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	return len(all)
}

func TestService_CreatePatient(t *testing.T) {
	svc, _ := newTestService(t)

	doc, err := svc.Create(context.Background(), "Patient", []byte(`{"resource":{"id":"p-001","gender":"male"}}`))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, doc.ID)
	assert.JSONEq(t, `{"resourceType":"Patient","id":"p-001","gender":"male"}`, string(doc.Resource))
	assert.JSONEq(t, `{}`, string(doc.MetaData))
}

func TestService_StoredResourceKeepsSubmittedBytes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "Medication", []byte(`{"resource":{"status":"active","id":"r1","code":{"text":"x"}}}`))
	require.NoError(t, err)

	got, err := svc.Get(ctx, "Medication", created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, `{"status":"active","id":"r1","code":{"text":"x"},"resourceType":"Medication"}`, string(got.Resource))
}

func TestService_CreateMissingResourcePersistsNothing(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.Create(context.Background(), "Patient", []byte(`{"metaData":{}}`))
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidPayload))
	assert.Equal(t, 0, count(t, store, "Patient"))
}

func TestService_CreateForPatient_LinksReport(t *testing.T) {
	svc, _ := newTestService(t)
	patient := createPatient(t, svc, "p-001")

	doc, err := svc.CreateForPatient(context.Background(), "DiagnosticReport", "p-001",
		[]byte(`{"metaData":{"patientID":"forged"},"resource":{"status":"final"}}`))
	require.NoError(t, err)
	assert.Equal(t, patient.ID.String(), doc.PatientID())
	assert.Equal(t, "DiagnosticReport", fhir.StringMember(doc.Resource, "resourceType"))
}

func TestService_Create_SubjectMustReferencePatient(t *testing.T) {
	svc, store := newTestService(t)
	createPatient(t, svc, "Practitioner")

	for _, ref := range []string{"Practitioner/x", "Group/g1"} {
		_, err := svc.Create(context.Background(), "Observation",
			[]byte(`{"resource":{"status":"final","code":{"text":"HR"},"subject":{"reference":"`+ref+`"}}}`))
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr, ref)
		assert.Equal(t, apperr.KindValidationFailed, appErr.Kind)
		require.Len(t, appErr.Issues, 1)
		assert.Equal(t, "resource.subject.reference", appErr.Issues[0].Path)
	}
	assert.Equal(t, 0, count(t, store, "Observation"))
}

func TestService_CreateForPatient_UnknownPatient(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.CreateForPatient(context.Background(), "Observation", "p-404",
		[]byte(`{"resource":{"status":"final","code":{"text":"HR"}}}`))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Equal(t, 0, count(t, store, "Observation"))
}

func TestService_CreateForPatient_ValidationBeforeLookup(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateForPatient(context.Background(), "Observation", "p-404", []byte(`{"resource":{"status":"final"}}`))
	assert.True(t, apperr.IsKind(err, apperr.KindValidationFailed))
}

func TestService_CreateForPatient_RejectsUnownedType(t *testing.T) {
	svc, _ := newTestService(t)
	createPatient(t, svc, "p-001")

	_, err := svc.CreateForPatient(context.Background(), "Medication", "p-001", []byte(`{"resource":{}}`))
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidPayload))
}

func TestService_CreateOwnedViaSubjectReference(t *testing.T) {
	svc, _ := newTestService(t)
	patient := createPatient(t, svc, "p-001")

	doc, err := svc.Create(context.Background(), "Observation",
		[]byte(`{"resource":{"status":"final","code":{"text":"HR"},"subject":{"reference":"Patient/p-001"}}}`))
	require.NoError(t, err)
	assert.Equal(t, patient.ID.String(), doc.PatientID())

	_, err = svc.Create(context.Background(), "Observation", []byte(`{"resource":{"status":"final","code":{"text":"HR"}}}`))
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidationFailed, appErr.Kind)
	assert.Equal(t, "resource.subject.reference", appErr.Issues[0].Path)
}

func TestService_UnknownResourceType(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "Encounter", []byte(`{"resource":{}}`))
	assert.True(t, apperr.IsKind(err, apperr.KindUnknownResourceType))

	_, err = svc.List(context.Background(), "Encounter")
	assert.True(t, apperr.IsKind(err, apperr.KindUnknownResourceType))
}

func TestService_UpdateThenGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	patient := createPatient(t, svc, "p-001")

	updated, err := svc.Update(ctx, "Patient", patient.ID.String(), []byte(`{"resource":{"id":"p-001","active":false}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"resourceType":"Patient","id":"p-001","active":false}`, string(updated.Resource))

	got, err := svc.Get(ctx, "Patient", patient.ID.String())
	require.NoError(t, err)
	assert.JSONEq(t, string(updated.Resource), string(got.Resource))
	assert.JSONEq(t, string(patient.MetaData), string(got.MetaData))
	assert.Equal(t, patient.CreatedAt, got.CreatedAt)
}

func TestService_UpdateKeepsLinkage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	patient := createPatient(t, svc, "p-001")
	report, err := svc.CreateForPatient(ctx, "DiagnosticReport", "p-001", []byte(`{"resource":{"status":"preliminary"}}`))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "DiagnosticReport", report.ID.String(),
		[]byte(`{"metaData":{"patientID":"someone-else"},"resource":{"status":"final"}}`))
	require.NoError(t, err)
	assert.Equal(t, patient.ID.String(), updated.PatientID())
	assert.Equal(t, "final", fhir.StringMember(updated.Resource, "status"))
}

func TestService_UpdateErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	patient := createPatient(t, svc, "p-001")

	_, err := svc.Update(ctx, "Patient", patient.ID.String(), []byte(`{}`))
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidPayload))

	_, err = svc.Update(ctx, "Patient", uuid.NewString(), []byte(`{"resource":{}}`))
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = svc.Update(ctx, "Patient", "not-a-uuid", []byte(`{"resource":{}}`))
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestService_DeleteTwice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	patient := createPatient(t, svc, "p-001")

	removed, err := svc.Delete(ctx, "Patient", patient.ID.String())
	require.NoError(t, err)
	assert.Equal(t, patient.ID, removed.ID)

	_, err = svc.Delete(ctx, "Patient", patient.ID.String())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestService_PublishesEventsAndCounts(t *testing.T) {
	svc, _ := newTestService(t)
	pub := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	svc.SetEventPublisher(pub)
	svc.SetMetrics(m)
	ctx := context.Background()

	patient := createPatient(t, svc, "p-001")
	report, err := svc.CreateForPatient(ctx, "DiagnosticReport", "p-001", []byte(`{"resource":{"status":"final"}}`))
	require.NoError(t, err)
	_, err = svc.Delete(ctx, "DiagnosticReport", report.ID.String())
	require.NoError(t, err)

	require.Len(t, pub.events, 3)
	assert.Equal(t, events.ActionCreated, pub.events[0].Action)
	assert.Equal(t, "p-001", pub.events[0].ResourceID)
	assert.Equal(t, "DiagnosticReport", pub.events[1].ResourceType)
	assert.Equal(t, patient.ID.String(), pub.events[1].PatientID)
	assert.Equal(t, events.ActionDeleted, pub.events[2].Action)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsWritten.WithLabelValues("DiagnosticReport", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsWritten.WithLabelValues("DiagnosticReport", "deleted")))
}

func TestService_EventFailureDoesNotFailWrite(t *testing.T) {
	svc, store := newTestService(t)
	svc.SetEventPublisher(&recordingPublisher{err: errors.New("broker down")})

	_, err := svc.Create(context.Background(), "Medication", []byte(`{"resource":{"status":"active"}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, store, "Medication"))
}

func TestService_StalledPublisherDoesNotHoldWrite(t *testing.T) {
	svc, store := newTestService(t)
	pub := &stalledPublisher{}
	svc.SetEventPublisher(pub)
	svc.eventTimeout = 20 * time.Millisecond

	// The client is already gone; the event is still attempted until its
	// own deadline.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := svc.Create(ctx, "Medication", []byte(`{"resource":{"status":"active"}}`))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, pub.err, context.DeadlineExceeded)
	assert.Equal(t, 1, count(t, store, "Medication"))
}

func TestService_PersistenceErrorsPassThrough(t *testing.T) {
	registry := fhir.NewRegistry()
	svc, err := NewService(fhir.NewEngine(registry), failingStore{}, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "Patient", []byte(`{"resource":{}}`))
	assert.True(t, apperr.IsKind(err, apperr.KindPersistence))
	assert.ErrorIs(t, err, errDriver)

	_, err = svc.CreateForPatient(context.Background(), "Observation", "p-001",
		[]byte(`{"resource":{"status":"final","code":{"text":"HR"}}}`))
	assert.True(t, apperr.IsKind(err, apperr.KindPersistence))
}

func TestService_ListReturnsAll(t *testing.T) {
	svc, _ := newTestService(t)
	createPatient(t, svc, "p-1")
	createPatient(t, svc, "p-2")

	docs, err := svc.List(context.Background(), "Patient")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ResourceID())
	}
	assert.Equal(t, []string{"p-1", "p-2"}, ids)
	assert.True(t, json.Valid(docs[0].Resource))
}
