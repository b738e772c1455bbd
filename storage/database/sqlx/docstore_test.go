package sqlxdb

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/storage/database"
)

func TestOrderBy(t *testing.T) {
	tests := []struct {
		name     string
		ordering []core.DBOrdering
		want     string
		wantErr  bool
	}{
		{name: "default", want: " ORDER BY created_at ASC, id ASC"},
		{
			name:     "by field",
			ordering: []core.DBOrdering{{Field: "date"}, {Field: "name", Ascending: true}},
			want:     " ORDER BY fields->>'date' DESC, fields->>'name' ASC, created_at ASC, id ASC",
		},
		{name: "injection", ordering: []core.DBOrdering{{Field: "name' ; DROP TABLE documents; --"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := orderBy(tt.ordering)
			if (err != nil) != tt.wantErr {
				t.Fatalf("orderBy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("orderBy() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestDocumentStore runs against a real database: ENV=TEST DATABASE_TESTS=1 go test ./...
func TestDocumentStore(t *testing.T) {
	if os.Getenv("DATABASE_TESTS") == "" {
		t.Skip("DATABASE_TESTS not set")
	}
	conf := core.NewConfig()
	require.NoError(t, database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db.DB))

	ctx := context.Background()
	store := NewDocumentStore(db)
	coll := "test_" + t.Name()
	t.Cleanup(func() { _, _ = db.Exec("DELETE FROM documents WHERE collection = $1", coll) })

	zed, err := store.Add(ctx, coll, map[string]interface{}{"name": "Zed", "size": 3})
	require.NoError(t, err)
	_, err = store.Add(ctx, coll, map[string]interface{}{"name": "Alpha"})
	require.NoError(t, err)

	docs, err := store.GetAll(ctx, coll, core.DBOrdering{Field: "name", Ascending: true})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Alpha", docs[0].Fields["name"])

	found, err := store.Find(ctx, coll, map[string]interface{}{"size": 3})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, zed.ID, found[0].ID)

	upd, err := store.Update(ctx, coll, zed.ID, map[string]interface{}{"name": "Zeta"})
	require.NoError(t, err)
	assert.Equal(t, "Zeta", upd.Fields["name"])
	assert.Equal(t, float64(3), upd.Fields["size"])

	require.NoError(t, store.Delete(ctx, coll, zed.ID))
	_, err = store.Get(ctx, coll, zed.ID)
	assert.Equal(t, core.ErrNotFound, err)
	assert.Equal(t, core.ErrNotFound, store.Delete(ctx, coll, zed.ID))
	_, err = store.Update(ctx, coll, zed.ID, map[string]interface{}{"name": "x"})
	assert.Equal(t, core.ErrNotFound, err)
}
