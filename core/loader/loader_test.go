package loader

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/core/cache"
	"github.com/trezcool/tathmini/core/classroom"
	"github.com/trezcool/tathmini/tests"
)

var errStoreDown = errors.New("store down")

func setup(t *testing.T) (*Loader, *testutil.CountingStore, clockwork.FakeClock) {
	store := testutil.NewCountingStore(nil)
	clock := clockwork.NewFakeClock()
	logger := testutil.NewDiscardLogger()
	c := cache.New(cache.NewMemoryStore(0), clock, logger, cache.DefaultOptions)

	testutil.AddDocument(t, store, classroom.CollGroups, map[string]interface{}{"name": "Tigers"})
	testutil.AddDocument(t, store, classroom.CollGroups, map[string]interface{}{"name": "Lions"})
	testutil.AddDocument(t, store, classroom.CollStudents, map[string]interface{}{"name": "Zawadi", "roll": "2"})
	testutil.AddDocument(t, store, classroom.CollStudents, map[string]interface{}{"name": "Amina", "roll": "1"})
	testutil.AddDocument(t, store, classroom.CollTasks, map[string]interface{}{"name": "First", "date": "2024-01-10", "maxScore": 50})
	testutil.AddDocument(t, store, classroom.CollTasks, map[string]interface{}{"name": "Second", "date": "2024-02-10", "maxScore": 50})

	return New(store, c, logger), store, clock
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()
	l, store, clock := setup(t)

	docs, src, err := l.Load(ctx, classroom.CollGroups)
	require.NoError(t, err)
	assert.Equal(t, SourceStore, src)
	require.Len(t, docs, 2)
	assert.Equal(t, "Lions", docs[0].Fields["name"], "groups are ordered by name")

	t.Run("idempotent", func(t *testing.T) {
		again, src, err := l.Load(ctx, classroom.CollGroups)
		require.NoError(t, err)
		assert.Equal(t, SourceCache, src)
		assert.Equal(t, docs, again)
		assert.Equal(t, 1, store.Fetches(classroom.CollGroups))
	})

	t.Run("expired", func(t *testing.T) {
		clock.Advance(cache.DefaultOptions.TTL + time.Millisecond)
		_, src, err := l.Load(ctx, classroom.CollGroups)
		require.NoError(t, err)
		assert.Equal(t, SourceStore, src)
		assert.Equal(t, 2, store.Fetches(classroom.CollGroups))
	})

	t.Run("tasks newest first", func(t *testing.T) {
		docs, _, err := l.Load(ctx, classroom.CollTasks)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "Second", docs[0].Fields["name"])
	})

	t.Run("empty collection", func(t *testing.T) {
		docs, _, err := l.Load(ctx, classroom.CollEvaluations)
		require.NoError(t, err)
		assert.NotNil(t, docs)
		assert.Empty(t, docs)
	})
}

func TestLoader_Invalidate(t *testing.T) {
	ctx := context.Background()
	l, store, _ := setup(t)

	_, _, err := l.Load(ctx, classroom.CollStudents)
	require.NoError(t, err)
	testutil.AddDocument(t, store, classroom.CollStudents, map[string]interface{}{"name": "Baraka", "roll": "3"})

	docs, src, err := l.Load(ctx, classroom.CollStudents)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, src)
	assert.Len(t, docs, 2, "cached snapshot predates the mutation")

	require.NoError(t, l.cache.Clear("students_data"))
	docs, src, err = l.Load(ctx, classroom.CollStudents)
	require.NoError(t, err)
	assert.Equal(t, SourceStore, src)
	assert.Len(t, docs, 3)
	assert.Equal(t, 2, store.Fetches(classroom.CollStudents))

	require.NoError(t, l.Invalidate(classroom.CollStudents))
	_, _, err = l.Load(ctx, classroom.CollStudents)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Fetches(classroom.CollStudents))
}

func TestLoader_InvalidateWhileLoading(t *testing.T) {
	ctx := context.Background()
	l, store, _ := setup(t)

	fetched, release := store.Hold(classroom.CollGroups)
	defer release()

	done := make(chan []core.Document, 1)
	go func() {
		docs, _, err := l.Load(ctx, classroom.CollGroups)
		assert.NoError(t, err)
		done <- docs
	}()
	<-fetched

	testutil.AddDocument(t, store, classroom.CollGroups, map[string]interface{}{"name": "Ants"})
	require.NoError(t, l.Invalidate(classroom.CollGroups))
	release()
	assert.Len(t, <-done, 2, "the load in flight returns what it fetched")

	docs, src, err := l.Load(ctx, classroom.CollGroups)
	require.NoError(t, err)
	assert.Equal(t, SourceStore, src, "what was fetched before the invalidation is not cached")
	assert.Len(t, docs, 3)
	assert.Equal(t, 2, store.Fetches(classroom.CollGroups))

	docs, src, err = l.Load(ctx, classroom.CollGroups)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, src)
	assert.Len(t, docs, 3)
}

func TestLoader_Fresh(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		change func(t *testing.T, l *Loader, clock clockwork.FakeClock)
		want   bool
	}{
		{
			name:   "unchanged",
			change: func(*testing.T, *Loader, clockwork.FakeClock) {},
			want:   true,
		},
		{
			name: "invalidated",
			change: func(t *testing.T, l *Loader, _ clockwork.FakeClock) {
				require.NoError(t, l.Invalidate(classroom.CollTasks))
			},
		},
		{
			name: "expired",
			change: func(_ *testing.T, _ *Loader, clock clockwork.FakeClock) {
				clock.Advance(cache.DefaultOptions.TTL)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, clock := setup(t)
			snap, err := l.LoadAll(ctx)
			require.NoError(t, err)
			tt.change(t, l, clock)
			assert.Equal(t, tt.want, l.Fresh(snap))
		})
	}

	t.Run("stale", func(t *testing.T) {
		l, store, clock := setup(t)
		_, err := l.LoadAll(ctx)
		require.NoError(t, err)
		clock.Advance(time.Hour)
		store.Fail(classroom.CollGroups, errStoreDown)

		snap, err := l.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, SourceStale, snap.Sources[classroom.CollGroups])
		assert.False(t, l.Fresh(snap))
	})

	t.Run("failed", func(t *testing.T) {
		l, store, _ := setup(t)
		store.Fail(classroom.CollTasks, errStoreDown)
		snap, err := l.LoadAll(ctx)
		require.Error(t, err)
		assert.False(t, l.Fresh(snap))
	})
}

func TestLoader_StaleFallback(t *testing.T) {
	ctx := context.Background()
	l, store, clock := setup(t)

	_, _, err := l.Load(ctx, classroom.CollGroups)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	store.Fail(classroom.CollGroups, errStoreDown)

	docs, src, err := l.Load(ctx, classroom.CollGroups)
	require.NoError(t, err)
	assert.Equal(t, SourceStale, src)
	assert.Len(t, docs, 2)

	t.Run("nothing cached", func(t *testing.T) {
		store.Fail(classroom.CollTasks, errStoreDown)
		_, _, err := l.Load(ctx, classroom.CollTasks)
		require.Error(t, err)
		assert.Equal(t, ErrUnavailable, errors.Cause(err))
		assert.Contains(t, err.Error(), "failed to load tasks")
	})
}

func TestLoader_LoadAll(t *testing.T) {
	ctx := context.Background()
	l, store, _ := setup(t)

	snap, err := l.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Groups, 2)
	assert.Len(t, snap.Students, 2)
	assert.Equal(t, "Amina", snap.Students[0].Name)
	assert.Len(t, snap.Tasks, 2)
	assert.Empty(t, snap.Evaluations)
	assert.Empty(t, snap.Failed)
	for _, coll := range classroom.Collections {
		assert.Equal(t, SourceStore, snap.Sources[coll], coll)
		assert.Equal(t, 1, store.Fetches(coll), coll)
	}

	t.Run("partial failure", func(t *testing.T) {
		l, store, _ := setup(t)
		store.Fail(classroom.CollTasks, errStoreDown)

		snap, err := l.LoadAll(ctx)
		require.Error(t, err)
		var errs Errors
		require.True(t, errors.As(err, &errs))
		assert.Equal(t, []string{classroom.CollTasks}, errs.Collections())
		assert.Equal(t, []string{classroom.CollTasks}, snap.Failed)
		assert.Nil(t, snap.Tasks)
		assert.Len(t, snap.Groups, 2, "other collections are still usable")
		assert.False(t, snap.Loaded(classroom.CollTasks))
	})

	t.Run("refresh bypasses the cache", func(t *testing.T) {
		snap, err := l.Refresh(ctx)
		require.NoError(t, err)
		for _, coll := range classroom.Collections {
			assert.Equal(t, SourceStore, snap.Sources[coll], coll)
			assert.Equal(t, 2, store.Fetches(coll), coll)
		}
		assert.False(t, l.cache.ForceRefresh())

		snap, err = l.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, SourceCache, snap.Sources[classroom.CollGroups])
	})
}

func TestSnapshot_Merge(t *testing.T) {
	prev := Snapshot{
		Groups:  []classroom.Group{{ID: "g1"}},
		Tasks:   []classroom.Task{{ID: "t1"}},
		Sources: map[string]Source{classroom.CollGroups: SourceStore, classroom.CollTasks: SourceStore},
	}
	next := Snapshot{
		Groups:  []classroom.Group{{ID: "g2"}},
		Sources: map[string]Source{classroom.CollGroups: SourceStore},
		Failed:  []string{classroom.CollTasks, classroom.CollStudents},
	}

	merged := next.Merge(prev)
	assert.Equal(t, []classroom.Group{{ID: "g2"}}, merged.Groups)
	assert.Equal(t, []classroom.Task{{ID: "t1"}}, merged.Tasks)
	assert.Equal(t, []string{classroom.CollStudents}, merged.Failed)
	assert.True(t, merged.Loaded(classroom.CollTasks))
	assert.False(t, next.Loaded(classroom.CollTasks), "merge does not modify its receiver")
}
