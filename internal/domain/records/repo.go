package records

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists the documents of one resource type. Missing rows are
// reported as apperr NotFound; any other store failure as apperr Persistence.
type Repository interface {
	// Create assigns the document id and timestamps and stores it.
	Create(ctx context.Context, doc *Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)
	FindAll(ctx context.Context) ([]*Document, error)
	// FindOne returns the earliest created document matching p.
	FindOne(ctx context.Context, p Predicate) (*Document, error)
	// UpdateByID applies the patch and returns the updated document.
	UpdateByID(ctx context.Context, id uuid.UUID, patch Patch) (*Document, error)
	// DeleteByID removes the document and returns it as it was.
	DeleteByID(ctx context.Context, id uuid.UUID) (*Document, error)
}

// Store hands out the repository of each registered resource type.
type Store interface {
	Repository(resourceType string) (Repository, error)
}
