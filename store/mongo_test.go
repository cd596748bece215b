package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/davrot/uodm/internal/database"
)

// Integration test; skipped unless a MongoDB instance is reachable via
// UODM_TEST_MONGODB_URI (e.g. mongodb://localhost:27017).
func TestMongoStoreCRUD(t *testing.T) {
	uri := os.Getenv("UODM_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("UODM_TEST_MONGODB_URI not set")
	}
	ctx := context.Background()
	client, err := database.ConnectMongo(ctx, uri, 10*time.Second)
	require.NoError(t, err)

	m := NewMongoStore(client, "uodm_test")
	defer m.Close(ctx)

	collection := "cities_" + uuid.NewString()[:8]
	require.NoError(t, m.EnsureNameIndex(ctx, collection))

	require.NoError(t, m.Insert(ctx, collection, "rome", Fields{"population": 100, "ancient": true}))
	err = m.Insert(ctx, collection, "rome", Fields{"population": 1})
	require.ErrorIs(t, err, ErrDuplicateName)

	got, err := m.Load(ctx, collection, "rome")
	require.NoError(t, err)
	require.EqualValues(t, 100, got["population"])
	require.NotContains(t, got, "_id")
	require.NotContains(t, got, NameField)

	require.NoError(t, m.Update(ctx, collection, "rome", "population", 200))
	got, err = m.Load(ctx, collection, "rome")
	require.NoError(t, err)
	require.EqualValues(t, 200, got["population"])

	require.NoError(t, m.UpdateFields(ctx, collection, "rome", Fields{"population": 300, "ancient": false}))

	recs, err := m.Find(ctx, collection, Fields{"ancient": false})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "rome", recs[0].Name)

	require.ErrorIs(t, m.Update(ctx, collection, "ghost", "population", 1), ErrNotFound)

	require.NoError(t, m.Delete(ctx, collection, "rome"))
	_, err = m.Load(ctx, collection, "rome")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, m.Delete(ctx, collection, "rome"), ErrNotFound)
}
