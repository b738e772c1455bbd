// Package loader loads whole collections from the document store, through the cache.
package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/core/cache"
	"github.com/trezcool/tathmini/core/classroom"
)

// ErrUnavailable is the cause of the error returned when a collection could neither be fetched nor read from the cache.
var ErrUnavailable = errors.New("collection unavailable")

// Source tells where a loaded collection comes from.
type Source int

const (
	SourceCache Source = iota + 1
	SourceStore
	SourceStale
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceStore:
		return "store"
	case SourceStale:
		return "stale cache"
	default:
		return "none"
	}
}

var orderings = map[string][]core.DBOrdering{
	classroom.CollGroups:   {{Field: "name", Ascending: true}},
	classroom.CollStudents: {{Field: "name", Ascending: true}},
	classroom.CollTasks:    {{Field: "date", Ascending: false}},
}

// CacheKey returns the key a collection is cached under.
func CacheKey(collection string) string {
	return collection + "_data"
}

// Errors lists the collections a LoadAll could not load.
type Errors map[string]error

func (errs Errors) Error() string {
	colls := errs.Collections()
	msgs := make([]string, 0, len(colls))
	for _, coll := range colls {
		msgs = append(msgs, errs[coll].Error())
	}
	return strings.Join(msgs, "; ")
}

// Collections returns the failed collections, sorted.
func (errs Errors) Collections() []string {
	colls := make([]string, 0, len(errs))
	for coll := range errs {
		colls = append(colls, coll)
	}
	sort.Strings(colls)
	return colls
}

type Loader struct {
	store core.DocumentStore
	cache *cache.Cache
	log   core.Logger

	refreshMu sync.Mutex

	mu      sync.Mutex
	epoch   uint64               // bumped by every Invalidate
	gens    map[string]uint64    // per collection Invalidate count
	expires map[string]time.Time // expiry of the entries this loader wrote
}

func New(store core.DocumentStore, c *cache.Cache, logger core.Logger) *Loader {
	return &Loader{
		store:   store,
		cache:   c,
		log:     logger,
		gens:    make(map[string]uint64),
		expires: make(map[string]time.Time),
	}
}

// Load returns the documents of collection: from the cache when fresh, else from the store.
// When the store fails, it falls back on the expired cache entry, if any.
func (l *Loader) Load(ctx context.Context, collection string) ([]core.Document, Source, error) {
	key := CacheKey(collection)
	gen := l.generation(collection)

	var docs []core.Document
	if l.cache.Get(key, &docs) {
		return docs, SourceCache, nil
	}

	docs, err := l.store.GetAll(ctx, collection, orderings[collection]...)
	if err == nil {
		if docs == nil {
			docs = []core.Document{}
		}
		l.cacheDocs(collection, gen, docs)
		return docs, SourceStore, nil
	}

	var stale []core.Document
	if l.cache.GetStale(key, &stale) {
		l.log.Warn(fmt.Sprintf("loading %s: %v; serving cached data", collection, err), err)
		return stale, SourceStale, nil
	}
	return nil, 0, errors.Wrapf(ErrUnavailable, "failed to load %s: %v", collection, err)
}

func (l *Loader) generation(collection string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gens[collection]
}

// cacheDocs writes docs to the cache unless collection was invalidated since gen was read:
// they may have been fetched before the mutation that invalidated it.
func (l *Loader) cacheDocs(collection string, gen uint64, docs []core.Document) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.gens[collection] != gen {
		l.log.Debug(fmt.Sprintf("loader: %s invalidated while loading, not caching", collection))
		return
	}
	// a failed write is already logged; the fetched data is still good
	if err := l.cache.Set(CacheKey(collection), docs); err != nil {
		delete(l.expires, collection)
		return
	}
	l.expires[collection] = l.cache.Now().Add(l.cache.TTL())
}

// LoadAll loads every classroom collection concurrently and waits for all of them.
// Collections that could not be loaded are listed in Snapshot.Failed and in the returned *Errors.
func (l *Loader) LoadAll(ctx context.Context) (Snapshot, error) {
	l.mu.Lock()
	epoch := l.epoch
	l.mu.Unlock()

	type result struct {
		docs   []core.Document
		source Source
		err    error
	}

	results := make([]result, len(classroom.Collections))
	var wg sync.WaitGroup
	for i, coll := range classroom.Collections {
		wg.Add(1)
		go func(i int, coll string) {
			defer wg.Done()
			docs, src, err := l.Load(ctx, coll)
			results[i] = result{docs: docs, source: src, err: err}
		}(i, coll)
	}
	wg.Wait()

	snap := Snapshot{Sources: make(map[string]Source, len(results)), Epoch: epoch}
	errs := make(Errors)
	for i, coll := range classroom.Collections {
		res := results[i]
		if res.err != nil {
			errs[coll] = res.err
			snap.Failed = append(snap.Failed, coll)
			continue
		}
		snap.Sources[coll] = res.source
		switch coll {
		case classroom.CollGroups:
			snap.Groups = classroom.DecodeGroups(res.docs, l.log)
		case classroom.CollStudents:
			snap.Students = classroom.DecodeStudents(res.docs, l.log)
		case classroom.CollTasks:
			snap.Tasks = classroom.DecodeTasks(res.docs, l.log)
		case classroom.CollEvaluations:
			snap.Evaluations = classroom.DecodeEvaluations(res.docs, l.log)
		}
	}

	if len(errs) > 0 {
		return snap, errs
	}
	return snap, nil
}

// Invalidate drops the cached copy of collection so that the next Load fetches it.
// Loads already in flight for collection do not write what they fetched to the cache.
func (l *Loader) Invalidate(collection string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.epoch++
	l.gens[collection]++
	delete(l.expires, collection)
	return l.cache.Clear(CacheKey(collection))
}

// Fresh reports whether s still holds what LoadAll would return: nothing was invalidated since it
// was loaded, and every collection comes from an entry this loader wrote and that has not expired.
func (l *Loader) Fresh(s Snapshot) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s.Epoch != l.epoch || len(s.Failed) > 0 {
		return false
	}
	now := l.cache.Now()
	for _, coll := range classroom.Collections {
		src, ok := s.Sources[coll]
		if !ok || src == SourceStale {
			return false
		}
		if exp, ok := l.expires[coll]; !ok || !now.Before(exp) {
			return false
		}
	}
	return true
}

// Refresh reloads every collection from the store, bypassing fresh cache entries.
func (l *Loader) Refresh(ctx context.Context) (Snapshot, error) {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	l.cache.SetForceRefresh(true)
	defer l.cache.SetForceRefresh(false)
	return l.LoadAll(ctx)
}
