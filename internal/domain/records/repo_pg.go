package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantumcare/clinical/internal/platform/apperr"
	"github.com/quantumcare/clinical/internal/platform/fhir"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Store ===========

type pgStore struct {
	repos map[string]Repository
}

// NewPGStore returns a store with one JSONB-backed repository per
// registered resource type, each bound to the type's collection table.
func NewPGStore(pool *pgxpool.Pool, registry *fhir.Registry) Store {
	s := &pgStore{repos: make(map[string]Repository)}
	for _, rt := range registry.ResourceTypes() {
		schema, _ := registry.SchemaFor(rt)
		s.repos[rt] = NewDocumentRepoPG(pool, rt, schema.Collection)
	}
	return s
}

func (s *pgStore) Repository(resourceType string) (Repository, error) {
	repo, ok := s.repos[resourceType]
	if !ok {
		return nil, apperr.UnknownResourceType(resourceType)
	}
	return repo, nil
}

// =========== Document Repository ===========

type documentRepoPG struct {
	db           queryable
	resourceType string
	table        string
}

func NewDocumentRepoPG(pool *pgxpool.Pool, resourceType, table string) Repository {
	return &documentRepoPG{db: pool, resourceType: resourceType, table: table}
}

const docCols = `id, meta_data, resource, created_at, updated_at`

func (r *documentRepoPG) tableName() string {
	return pgx.Identifier{r.table}.Sanitize()
}

func (r *documentRepoPG) scanDoc(row pgx.Row) (*Document, error) {
	var doc Document
	var meta, res []byte
	if err := row.Scan(&doc.ID, &meta, &res, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.MetaData = meta
	doc.Resource = res
	return &doc, nil
}

func (r *documentRepoPG) wrap(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(fmt.Sprintf("%s not found", r.resourceType))
	}
	return apperr.Persistence(fmt.Sprintf("%s %s", op, r.table), err)
}

func (r *documentRepoPG) Create(ctx context.Context, doc *Document) error {
	doc.ID = uuid.New()
	err := r.db.QueryRow(ctx, `
		INSERT INTO `+r.tableName()+` (id, meta_data, resource)
		VALUES ($1, $2::jsonb, $3::jsonb)
		RETURNING created_at, updated_at`,
		doc.ID, jsonParam(doc.MetaData), jsonParam(doc.Resource),
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return r.wrap("insert into", err)
	}
	return nil
}

func (r *documentRepoPG) FindByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	doc, err := r.scanDoc(r.db.QueryRow(ctx, `SELECT `+docCols+` FROM `+r.tableName()+` WHERE id = $1`, id))
	if err != nil {
		return nil, r.wrap("select from", err)
	}
	return doc, nil
}

func (r *documentRepoPG) FindAll(ctx context.Context) ([]*Document, error) {
	rows, err := r.db.Query(ctx, `SELECT `+docCols+` FROM `+r.tableName()+` ORDER BY created_at, id`)
	if err != nil {
		return nil, r.wrap("select from", err)
	}
	defer rows.Close()

	items := []*Document{}
	for rows.Next() {
		doc, err := r.scanDoc(rows)
		if err != nil {
			return nil, r.wrap("scan", err)
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrap("iterate", err)
	}
	return items, nil
}

func (r *documentRepoPG) FindOne(ctx context.Context, p Predicate) (*Document, error) {
	if len(p.Path) == 0 {
		return nil, apperr.Persistence("find one in "+r.table, errors.New("empty predicate path"))
	}
	doc, err := r.scanDoc(r.db.QueryRow(ctx, `
		SELECT `+docCols+` FROM `+r.tableName()+`
		WHERE `+resourcePathExpr(p.Path)+` = $1
		ORDER BY created_at, id
		LIMIT 1`, p.Value))
	if err != nil {
		return nil, r.wrap("select from", err)
	}
	return doc, nil
}

func (r *documentRepoPG) UpdateByID(ctx context.Context, id uuid.UUID, patch Patch) (*Document, error) {
	doc, err := r.scanDoc(r.db.QueryRow(ctx, `
		UPDATE `+r.tableName()+` SET
			meta_data = COALESCE($2::jsonb, meta_data),
			resource = COALESCE($3::jsonb, resource),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+docCols,
		id, jsonParam(patch.MetaData), jsonParam(patch.Resource)))
	if err != nil {
		return nil, r.wrap("update", err)
	}
	return doc, nil
}

func (r *documentRepoPG) DeleteByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	doc, err := r.scanDoc(r.db.QueryRow(ctx, `DELETE FROM `+r.tableName()+` WHERE id = $1 RETURNING `+docCols, id))
	if err != nil {
		return nil, r.wrap("delete from", err)
	}
	return doc, nil
}

// resourcePathExpr renders a path as chained -> / ->> operators with literal
// keys, e.g. resource ->> 'id', so the text matches the expression indexes
// in the migrations.
func resourcePathExpr(path []string) string {
	var sb strings.Builder
	sb.WriteString("resource")
	for i, key := range path {
		if i == len(path)-1 {
			sb.WriteString(" ->> ")
		} else {
			sb.WriteString(" -> ")
		}
		sb.WriteString(quoteLiteral(key))
	}
	return sb.String()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// jsonParam passes raw JSON as text so pgx sends it untouched; a nil
// value becomes SQL NULL.
func jsonParam(raw []byte) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}
