package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantumcare/clinical/internal/platform/apperr"
	"github.com/quantumcare/clinical/internal/platform/fhir"
)

type memoryStore struct {
	repos map[string]Repository
}

// NewMemoryStore returns a process-local store for every registered
// resource type. Contents are lost on restart.
func NewMemoryStore(registry *fhir.Registry) Store {
	s := &memoryStore{repos: make(map[string]Repository)}
	for _, rt := range registry.ResourceTypes() {
		s.repos[rt] = NewDocumentRepoMemory(rt)
	}
	return s
}

func (s *memoryStore) Repository(resourceType string) (Repository, error) {
	repo, ok := s.repos[resourceType]
	if !ok {
		return nil, apperr.UnknownResourceType(resourceType)
	}
	return repo, nil
}

type documentRepoMemory struct {
	mu           sync.RWMutex
	resourceType string
	docs         map[uuid.UUID]*Document
	order        []uuid.UUID
	now          func() time.Time
}

func NewDocumentRepoMemory(resourceType string) Repository {
	return &documentRepoMemory{
		resourceType: resourceType,
		docs:         make(map[uuid.UUID]*Document),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (r *documentRepoMemory) notFound() error {
	return apperr.NotFound(fmt.Sprintf("%s not found", r.resourceType))
}

func (r *documentRepoMemory) Create(_ context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc.ID = uuid.New()
	doc.CreatedAt = r.now()
	doc.UpdatedAt = doc.CreatedAt
	r.docs[doc.ID] = cloneDoc(doc)
	r.order = append(r.order, doc.ID)
	return nil
}

func (r *documentRepoMemory) FindByID(_ context.Context, id uuid.UUID) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id]
	if !ok {
		return nil, r.notFound()
	}
	return cloneDoc(doc), nil
}

func (r *documentRepoMemory) FindAll(_ context.Context) ([]*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Document, 0, len(r.order))
	for _, id := range r.order {
		items = append(items, cloneDoc(r.docs[id]))
	}
	return items, nil
}

func (r *documentRepoMemory) FindOne(_ context.Context, p Predicate) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		doc := r.docs[id]
		if v, ok := lookupText(doc.Resource, p.Path); ok && v == p.Value {
			return cloneDoc(doc), nil
		}
	}
	return nil, r.notFound()
}

func (r *documentRepoMemory) UpdateByID(_ context.Context, id uuid.UUID, patch Patch) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return nil, r.notFound()
	}
	if patch.MetaData != nil {
		doc.MetaData = cloneRaw(patch.MetaData)
	}
	if patch.Resource != nil {
		doc.Resource = cloneRaw(patch.Resource)
	}
	doc.UpdatedAt = r.now()
	return cloneDoc(doc), nil
}

func (r *documentRepoMemory) DeleteByID(_ context.Context, id uuid.UUID) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return nil, r.notFound()
	}
	delete(r.docs, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return doc, nil
}

// lookupText follows path through nested objects and renders the scalar at
// the end as text, the way Postgres' ->> operator does.
func lookupText(raw json.RawMessage, path []string) (string, bool) {
	if len(path) == 0 {
		return "", false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var cur any
	if err := dec.Decode(&cur); err != nil {
		return "", false
	}
	for _, name := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = obj[name]; !ok {
			return "", false
		}
	}
	switch v := cur.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneDoc(d *Document) *Document {
	c := *d
	c.MetaData = cloneRaw(d.MetaData)
	c.Resource = cloneRaw(d.Resource)
	return &c
}
