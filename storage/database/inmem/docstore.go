package inmemdb

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/tathmini/core"
)

type (
	// DB is an in-memory document store. Values are stored in their JSON form.
	DB struct {
		mutex       sync.RWMutex
		collections map[string]*collection
	}

	collection struct {
		order []string // insertion order
		docs  map[string]map[string]interface{}
	}
)

var _ core.DocumentStore = (*DB)(nil)

func Open() *DB {
	return &DB{collections: make(map[string]*collection)}
}

func (db *DB) coll(name string) *collection {
	c, ok := db.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]map[string]interface{})}
		db.collections[name] = c
	}
	return c
}

// normalize returns a deep copy of fields, as it would come back from a JSON store.
func normalize(fields map[string]interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, "encoding fields")
	}
	out := make(map[string]interface{})
	if err = json.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(err, "decoding fields")
	}
	return out, nil
}

func document(id string, fields map[string]interface{}) core.Document {
	cp, _ := normalize(fields) // stored fields always encode
	return core.Document{ID: id, Fields: cp}
}

func (db *DB) GetAll(ctx context.Context, collection string, ordering ...core.DBOrdering) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	c, ok := db.collections[collection]
	if !ok {
		return []core.Document{}, nil
	}
	docs := make([]core.Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, document(id, c.docs[id]))
	}

	for _, ord := range ordering {
		if !ord.Valid() {
			return nil, errors.Errorf("invalid ordering field %q", ord.Field)
		}
	}
	if len(ordering) > 0 {
		sort.SliceStable(docs, func(i, j int) bool {
			for _, ord := range ordering {
				a, b := fmt.Sprint(docs[i].Fields[ord.Field]), fmt.Sprint(docs[j].Fields[ord.Field])
				if a == b {
					continue
				}
				if ord.Ascending {
					return a < b
				}
				return a > b
			}
			return false
		})
	}
	return docs, nil
}

func (db *DB) Get(ctx context.Context, collection, id string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if c, ok := db.collections[collection]; ok {
		if fields, ok := c.docs[id]; ok {
			return document(id, fields), nil
		}
	}
	return core.Document{}, core.ErrNotFound
}

func (db *DB) Find(ctx context.Context, collection string, equals map[string]interface{}) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want, err := normalize(equals)
	if err != nil {
		return nil, err
	}

	db.mutex.RLock()
	defer db.mutex.RUnlock()

	docs := make([]core.Document, 0)
	c, ok := db.collections[collection]
	if !ok {
		return docs, nil
	}
	for _, id := range c.order {
		fields := c.docs[id]
		match := true
		for k, v := range want {
			if !reflect.DeepEqual(fields[k], v) {
				match = false
				break
			}
		}
		if match {
			docs = append(docs, document(id, fields))
		}
	}
	return docs, nil
}

func (db *DB) Add(ctx context.Context, collection string, fields map[string]interface{}) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	stored, err := normalize(fields)
	if err != nil {
		return core.Document{}, err
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	c := db.coll(collection)
	id := uuid.NewString()
	c.docs[id] = stored
	c.order = append(c.order, id)
	return document(id, stored), nil
}

// Update merges the top-level fields into the stored ones.
func (db *DB) Update(ctx context.Context, collection, id string, fields map[string]interface{}) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	changes, err := normalize(fields)
	if err != nil {
		return core.Document{}, err
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	c, ok := db.collections[collection]
	if !ok {
		return core.Document{}, core.ErrNotFound
	}
	stored, ok := c.docs[id]
	if !ok {
		return core.Document{}, core.ErrNotFound
	}
	for k, v := range changes {
		stored[k] = v
	}
	return document(id, stored), nil
}

func (db *DB) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()

	c, ok := db.collections[collection]
	if !ok {
		return core.ErrNotFound
	}
	if _, ok = c.docs[id]; !ok {
		return core.ErrNotFound
	}
	delete(c.docs, id)
	for i, docID := range c.order {
		if docID == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}
