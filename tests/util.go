package testutil

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"

	"github.com/trezcool/tathmini/core"
	logsvc "github.com/trezcool/tathmini/services/logger"
	inmemdb "github.com/trezcool/tathmini/storage/database/inmem"
)

// NewLogger returns a logger writing to the test log.
func NewLogger(t *testing.T) core.Logger {
	return logsvc.NewSilentLogger(testWriter{t}, "TEST : ")
}

// NewDiscardLogger returns a logger writing nowhere.
func NewDiscardLogger() core.Logger {
	return logsvc.NewSilentLogger(io.Discard, "")
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// NewValidator returns a validator with the core validators registered.
// Callers register their own package validators on it.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	return validate, translator
}

// AddDocument adds a document to the store and returns its id.
func AddDocument(t *testing.T, store core.DocumentStore, collection string, fields map[string]interface{}) string {
	t.Helper()
	doc, err := store.Add(context.Background(), collection, fields)
	if err != nil {
		t.Fatalf("AddDocument() failed: %v", err)
	}
	return doc.ID
}

// CountingStore wraps a DocumentStore, counting GetAll calls per collection, and optionally failing them.
type CountingStore struct {
	core.DocumentStore

	mu      sync.Mutex
	fetches map[string]int
	failing map[string]error
	holds   map[string]*hold
}

type hold struct {
	fetched chan struct{}
	release chan struct{}
}

var _ core.DocumentStore = (*CountingStore)(nil)

func NewCountingStore(store core.DocumentStore) *CountingStore {
	if store == nil {
		store = inmemdb.Open()
	}
	return &CountingStore{
		DocumentStore: store,
		fetches:       make(map[string]int),
		failing:       make(map[string]error),
		holds:         make(map[string]*hold),
	}
}

func (s *CountingStore) GetAll(ctx context.Context, collection string, ordering ...core.DBOrdering) ([]core.Document, error) {
	s.mu.Lock()
	s.fetches[collection]++
	err := s.failing[collection]
	h := s.holds[collection]
	delete(s.holds, collection)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	docs, err := s.DocumentStore.GetAll(ctx, collection, ordering...)
	if h != nil {
		close(h.fetched)
		<-h.release
	}
	return docs, err
}

// Hold makes the next GetAll of collection wait, once its documents are read, until release is called.
// fetched is closed when the documents are read.
func (s *CountingStore) Hold(collection string) (fetched <-chan struct{}, release func()) {
	h := &hold{fetched: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	s.holds[collection] = h
	s.mu.Unlock()

	var once sync.Once
	return h.fetched, func() { once.Do(func() { close(h.release) }) }
}

// Fetches returns the number of GetAll calls made for collection.
func (s *CountingStore) Fetches(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[collection]
}

// Fail makes GetAll fail with err for collection; a nil err restores it.
func (s *CountingStore) Fail(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failing, collection)
		return
	}
	s.failing[collection] = err
}
