package core

import (
	"context"
	"regexp"
)

var orderingFieldRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Valid reports whether Field is a plain identifier, safe to interpolate in a query.
func (ord DBOrdering) Valid() bool {
	return orderingFieldRegex.MatchString(ord.Field)
}

// Document is one record of a collection: a store-assigned ID and its fields.
type Document struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// DocumentStore is the remote, collection-oriented document store.
//
// Update merges the given fields into the stored ones.
// Find returns the documents whose fields are equal to every given value.
// Get, Update and Delete return ErrNotFound if the document does not exist.
type DocumentStore interface {
	GetAll(ctx context.Context, collection string, ordering ...DBOrdering) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Find(ctx context.Context, collection string, equals map[string]interface{}) ([]Document, error)
	Add(ctx context.Context, collection string, fields map[string]interface{}) (Document, error)
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) (Document, error)
	Delete(ctx context.Context, collection, id string) error
}
