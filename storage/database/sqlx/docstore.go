package sqlxdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/tathmini/core"
)

// documents are rows of the "documents" table, their fields held in a JSONB column.
type document struct {
	ID     string         `db:"id"`
	Fields types.JSONText `db:"fields"`
}

func (d document) toCore() (core.Document, error) {
	fields := make(map[string]interface{})
	if err := d.Fields.Unmarshal(&fields); err != nil {
		return core.Document{}, errors.Wrapf(err, "decoding document %q", d.ID)
	}
	return core.Document{ID: d.ID, Fields: fields}, nil
}

func toCore(rows []document) ([]core.Document, error) {
	docs := make([]core.Document, 0, len(rows))
	for _, r := range rows {
		doc, err := r.toCore()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

type DocumentStore struct {
	db *sqlx.DB
}

var _ core.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore(db *sqlx.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// DB returns the underlying database, eg. to run migrations.
func (s *DocumentStore) DB() *sql.DB {
	return s.db.DB
}

func (s *DocumentStore) Close() error {
	return s.db.Close()
}

func orderBy(ordering []core.DBOrdering) (string, error) {
	clauses := make([]string, 0, len(ordering)+2)
	for _, ord := range ordering {
		if !ord.Valid() {
			return "", errors.Errorf("invalid ordering field %q", ord.Field)
		}
		direction := "DESC"
		if ord.Ascending {
			direction = "ASC"
		}
		clauses = append(clauses, fmt.Sprintf("fields->>'%s' %s", ord.Field, direction))
	}
	clauses = append(clauses, "created_at ASC", "id ASC")
	return " ORDER BY " + strings.Join(clauses, ", "), nil
}

func (s *DocumentStore) GetAll(ctx context.Context, collection string, ordering ...core.DBOrdering) ([]core.Document, error) {
	order, err := orderBy(ordering)
	if err != nil {
		return nil, err
	}

	var rows []document
	q := "SELECT id, fields FROM documents WHERE collection = $1" + order
	if err = s.db.SelectContext(ctx, &rows, q, collection); err != nil {
		return nil, errors.Wrapf(err, "selecting %s", collection)
	}
	return toCore(rows)
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (core.Document, error) {
	var row document
	q := "SELECT id, fields FROM documents WHERE collection = $1 AND id = $2"
	if err := s.db.GetContext(ctx, &row, q, collection, id); err != nil {
		if err == sql.ErrNoRows {
			return core.Document{}, core.ErrNotFound
		}
		return core.Document{}, errors.Wrapf(err, "selecting %s %q", collection, id)
	}
	return row.toCore()
}

// Find matches documents whose fields contain the given ones (JSONB containment).
func (s *DocumentStore) Find(ctx context.Context, collection string, equals map[string]interface{}) ([]core.Document, error) {
	filter, err := json.Marshal(equals)
	if err != nil {
		return nil, errors.Wrap(err, "encoding filter")
	}

	var rows []document
	q := "SELECT id, fields FROM documents WHERE collection = $1 AND fields @> $2::jsonb ORDER BY created_at ASC, id ASC"
	if err = s.db.SelectContext(ctx, &rows, q, collection, string(filter)); err != nil {
		return nil, errors.Wrapf(err, "filtering %s", collection)
	}
	return toCore(rows)
}

func (s *DocumentStore) Add(ctx context.Context, collection string, fields map[string]interface{}) (core.Document, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return core.Document{}, errors.Wrap(err, "encoding fields")
	}

	var row document
	q := "INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb) RETURNING id, fields"
	if err = s.db.GetContext(ctx, &row, q, collection, uuid.NewString(), string(b)); err != nil {
		return core.Document{}, errors.Wrapf(err, "inserting into %s", collection)
	}
	return row.toCore()
}

// Update merges the top-level fields into the stored ones.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) (core.Document, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return core.Document{}, errors.Wrap(err, "encoding fields")
	}

	var row document
	q := `UPDATE documents SET fields = fields || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING id, fields`
	if err = s.db.GetContext(ctx, &row, q, collection, id, string(b)); err != nil {
		if err == sql.ErrNoRows {
			return core.Document{}, core.ErrNotFound
		}
		return core.Document{}, errors.Wrapf(err, "updating %s %q", collection, id)
	}
	return row.toCore()
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = $1 AND id = $2", collection, id)
	if err != nil {
		return errors.Wrapf(err, "deleting %s %q", collection, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "deleting %s %q", collection, id)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
