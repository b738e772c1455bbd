package session

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tathmini/core/cache"
	inmemdb "github.com/trezcool/tathmini/storage/database/inmem"
	"github.com/trezcool/tathmini/tests"
)

type countingResolver struct {
	RoleResolver
	calls int
}

func (r *countingResolver) Role(ctx context.Context, uid string) (Role, error) {
	r.calls++
	return r.RoleResolver.Role(ctx, uid)
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	testutil.AddDocument(t, db, CollAdmins, map[string]interface{}{"uid": "admin-1"})

	logger := testutil.NewLogger(t)
	c := cache.New(cache.NewMemoryStore(0), clockwork.NewFakeClock(), logger, cache.DefaultOptions)
	resolver := &countingResolver{RoleResolver: NewStoreResolver(db)}
	m := NewManager(c, resolver, logger)

	tests := []struct {
		name string
		uid  string
		want Role
	}{
		{name: "admin", uid: "admin-1", want: RoleAdmin},
		{name: "viewer", uid: "someone", want: RoleViewer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.SignedIn(ctx, tt.uid)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 2, resolver.calls)

	t.Run("cached per user", func(t *testing.T) {
		role, err := m.SignedIn(ctx, "admin-1")
		require.NoError(t, err)
		assert.True(t, role.IsAdmin())
		assert.Equal(t, 2, resolver.calls)
	})

	t.Run("no uid", func(t *testing.T) {
		_, err := m.SignedIn(ctx, "")
		assert.Error(t, err)
	})

	t.Run("signed out", func(t *testing.T) {
		require.NoError(t, c.Set("groups_data", []string{"cached"}))
		require.NoError(t, m.SignedOut())

		var v []string
		assert.False(t, c.GetStale("groups_data", &v))

		_, err := m.SignedIn(ctx, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, 3, resolver.calls, "role is looked up again after sign out")
	})
}
