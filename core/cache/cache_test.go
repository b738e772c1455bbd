package cache

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tathmini/core"
	logsvc "github.com/trezcool/tathmini/services/logger"
)

var testLogger core.Logger = logsvc.NewSilentLogger(io.Discard, "CACHE : ")

type payload struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func newTestCache(store Store) (*Cache, clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	return New(store, clock, testLogger, DefaultOptions), clock
}

func TestCache_SetGet(t *testing.T) {
	c, clock := newTestCache(NewMemoryStore(0))

	require.NoError(t, c.Set("students_data", []payload{{Name: "Amina", N: 1}}))

	var got []payload
	require.True(t, c.Get("students_data", &got))
	assert.Equal(t, []payload{{Name: "Amina", N: 1}}, got)

	t.Run("namespaced", func(t *testing.T) {
		_, ok, err := c.store.Get("tathmini_students_data")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired", func(t *testing.T) {
		clock.Advance(DefaultOptions.TTL)
		assert.True(t, c.Get("students_data", &got), "entry is still valid at its expiry instant")

		clock.Advance(time.Millisecond)
		assert.False(t, c.Get("students_data", &got))

		var stale []payload
		assert.True(t, c.GetStale("students_data", &stale), "expired entries remain available as stale")
		assert.Equal(t, got, stale)
	})

	t.Run("custom ttl", func(t *testing.T) {
		require.NoError(t, c.Set("short", 1, time.Second))
		var n int
		assert.True(t, c.Get("short", &n))
		clock.Advance(2 * time.Second)
		assert.False(t, c.Get("short", &n))
	})

	t.Run("absent", func(t *testing.T) {
		var v payload
		assert.False(t, c.Get("nope", &v))
		assert.False(t, c.GetStale("nope", &v))
	})
}

func TestCache_SelfHeal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "{lol"},
		{name: "no data", raw: `{"timestamp": 1, "expires": 99999999999999}`},
		{name: "wrong data type", raw: `{"data": "text", "timestamp": 1, "expires": 99999999999999}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore(0)
			require.NoError(t, store.Set("tathmini_groups_data", []byte(tt.raw)))
			c, _ := newTestCache(store)

			var got []payload
			assert.False(t, c.Get("groups_data", &got))

			_, ok, _ := store.Get("tathmini_groups_data")
			assert.False(t, ok, "corrupt entry must be removed")
			assert.Equal(t, 1, c.Stats().Healed)
		})
	}
}

func TestCache_Eviction(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
	}{
		{name: "just above soft limit", capacity: 51},
		{name: "well above soft limit", capacity: 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore(tt.capacity)
			c, clock := newTestCache(store)

			for i := 0; i < tt.capacity; i++ {
				require.NoError(t, c.Set(fmt.Sprintf("k%03d", i), i))
				clock.Advance(time.Millisecond)
			}

			require.NoError(t, c.Set("overflow", "x"))

			keys, err := store.Keys(DefaultOptions.Prefix)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(keys), tt.capacity-DefaultOptions.EvictBatch+1)
			assert.Equal(t, DefaultOptions.EvictBatch, c.Stats().Evictions)

			var n int
			for i := 0; i < DefaultOptions.EvictBatch; i++ {
				assert.False(t, c.GetStale(fmt.Sprintf("k%03d", i), &n), "oldest entries are evicted first")
			}
			assert.True(t, c.Get(fmt.Sprintf("k%03d", DefaultOptions.EvictBatch), &n))
			assert.True(t, c.Get("overflow", new(string)))
		})
	}

	t.Run("unparsable entries go first", func(t *testing.T) {
		store := NewMemoryStore(60)
		c, clock := newTestCache(store)
		require.NoError(t, store.Set("tathmini_garbage", []byte("???")))
		for i := 0; i < 59; i++ {
			require.NoError(t, c.Set(fmt.Sprintf("k%03d", i), i))
			clock.Advance(time.Millisecond)
		}
		require.NoError(t, c.Set("overflow", 1))

		_, ok, _ := store.Get("tathmini_garbage")
		assert.False(t, ok)
		var n int
		assert.True(t, c.Get("k009", &n))
		assert.False(t, c.GetStale("k008", &n))
	})

	t.Run("below soft limit", func(t *testing.T) {
		store := NewMemoryStore(5)
		c, _ := newTestCache(store)
		for i := 0; i < 5; i++ {
			require.NoError(t, c.Set(fmt.Sprintf("k%d", i), i))
		}

		err := c.Set("overflow", 1)
		assert.ErrorIs(t, err, ErrQuotaExceeded)
		assert.Equal(t, 0, c.Stats().Evictions)
		assert.Equal(t, 1, c.Stats().WriteFailures)
	})

	t.Run("foreign keys are never evicted", func(t *testing.T) {
		store := NewMemoryStore(60)
		require.NoError(t, store.Set("other_app", []byte("keep")))
		c, clock := newTestCache(store)
		for i := 0; i < 59; i++ {
			require.NoError(t, c.Set(fmt.Sprintf("k%03d", i), i))
			clock.Advance(time.Millisecond)
		}
		require.NoError(t, c.Set("overflow", 1))

		v, ok, _ := store.Get("other_app")
		assert.True(t, ok)
		assert.Equal(t, "keep", string(v))
	})
}

func TestCache_Clear(t *testing.T) {
	store := NewMemoryStore(0)
	require.NoError(t, store.Set("other_app", []byte("keep")))
	c, _ := newTestCache(store)

	for _, k := range []string{"groups_data", "students_data", "role_u1"} {
		require.NoError(t, c.Set(k, k))
	}

	require.NoError(t, c.Clear("students_data"))
	var s string
	assert.False(t, c.GetStale("students_data", &s))
	assert.True(t, c.Get("groups_data", &s))

	require.NoError(t, c.ClearAll())
	keys, err := store.Keys("")
	require.NoError(t, err)
	assert.Equal(t, []string{"other_app"}, keys)
}

func TestCache_ForceRefresh(t *testing.T) {
	c, clock := newTestCache(NewMemoryStore(0))
	require.NoError(t, c.Set("tasks_data", "t"))

	var s string
	c.SetForceRefresh(true)
	assert.True(t, c.ForceRefresh())
	assert.False(t, c.Get("tasks_data", &s))
	assert.True(t, c.GetStale("tasks_data", &s), "stale reads ignore force refresh")

	clock.Advance(DefaultOptions.ForceRefreshWindow)
	assert.Eventually(t, func() bool { return !c.ForceRefresh() }, time.Second, 5*time.Millisecond)
	assert.True(t, c.Get("tasks_data", &s))

	t.Run("turned off explicitly", func(t *testing.T) {
		c.SetForceRefresh(true)
		c.SetForceRefresh(false)
		assert.True(t, c.Get("tasks_data", &s))
	})

	t.Run("re-armed", func(t *testing.T) {
		c.SetForceRefresh(true)
		clock.Advance(DefaultOptions.ForceRefreshWindow / 2)
		c.SetForceRefresh(true)
		clock.Advance(DefaultOptions.ForceRefreshWindow / 2)
		time.Sleep(10 * time.Millisecond)
		assert.True(t, c.ForceRefresh(), "the first timer must not reset the second request")
		c.SetForceRefresh(false)
	})
}

func TestCache_Stats(t *testing.T) {
	c, _ := newTestCache(NewMemoryStore(0))
	require.NoError(t, c.Set("a", 1))

	var n int
	c.Get("a", &n)
	c.Get("a", &n)
	c.Get("b", &n)
	c.GetStale("a", &n)

	assert.Equal(t, Stats{Hits: 2, Misses: 1, StaleHits: 1}, c.Stats())
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(core.CacheConfig{Prefix: "x_", TTL: time.Minute})
	assert.Equal(t, "x_", opts.Prefix)
	assert.Equal(t, time.Minute, opts.TTL)
	assert.Equal(t, DefaultOptions.SoftLimit, opts.SoftLimit)
	assert.Equal(t, DefaultOptions.EvictBatch, opts.EvictBatch)
	assert.True(t, strings.HasSuffix(opts.Prefix, "_"))
}
