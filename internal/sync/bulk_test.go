package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	"github.com/taskgoapp/taskgo-sync/internal/infrastructure/observability"
	"github.com/taskgoapp/taskgo-sync/internal/testutil"
)

func newBulkSyncer(store *testutil.FakeDocStore, cache EntityCache) *BulkSyncer {
	return NewBulkSyncer(store, cache, zerolog.Nop(), observability.NewMetrics("test", prometheus.NewRegistry()))
}

func seedUser(store *testutil.FakeDocStore, userID string) {
	store.Seed("users", userID, map[string]any{"id": userID, "name": "Ana", "updatedAt": int64(100)})
	store.Seed("users/"+userID+"/products", "p1", map[string]any{"id": "p1", "sellerId": userID})
	store.Seed("users/"+userID+"/products", "p2", map[string]any{"id": "p2", "sellerId": userID})
	store.Seed("users/"+userID+"/orders", "o1", map[string]any{"id": "o1", "clientId": userID})
	store.Seed("addresses", "a1", map[string]any{"id": "a1", "userId": userID})
	store.Seed("addresses", "a2", map[string]any{"id": "a2", "userId": "someone-else"})
	store.Seed("cards", "c1", map[string]any{"id": "c1", "userId": userID, "last4": "4242"})
}

func TestBulkSyncer_SyncAll_HydratesCache(t *testing.T) {
	store := testutil.NewFakeDocStore()
	cache := testutil.NewFakeEntityCache()
	seedUser(store, "u1")

	report := newBulkSyncer(store, cache).SyncAll(context.Background(), "u1")

	assert.True(t, report.AllOK())
	assert.Equal(t, 1, report.Counts[entity.TypeUserProfile])
	assert.Equal(t, 2, report.Counts[entity.TypeProduct])
	assert.Equal(t, 1, report.Counts[entity.TypeOrder])
	assert.Equal(t, 1, report.Counts[entity.TypeAddress])
	assert.Equal(t, 1, report.Counts[entity.TypeCard])

	assert.Equal(t, 2, cache.Len(entity.TypeProduct))
	assert.Equal(t, 1, cache.Len(entity.TypeAddress), "only the user's own addresses are hydrated")

	profile, err := cache.Get(context.Background(), entity.TypeUserProfile, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile["name"])
}

func TestBulkSyncer_SyncAll_FreshAccount(t *testing.T) {
	store := testutil.NewFakeDocStore()
	cache := testutil.NewFakeEntityCache()

	report := newBulkSyncer(store, cache).SyncAll(context.Background(), "new-user")

	assert.True(t, report.AllOK(), "an absent profile document is a fresh account, not an error")
	assert.Equal(t, 0, report.Counts[entity.TypeUserProfile])
}

func TestBulkSyncer_SyncAll_PartialFailure(t *testing.T) {
	store := testutil.NewFakeDocStore()
	cache := testutil.NewFakeEntityCache()
	seedUser(store, "u1")

	// Addresses listing fails; everything else must still hydrate.
	store.Errs["addresses/"] = errors.New("timeout")

	report := newBulkSyncer(store, cache).SyncAll(context.Background(), "u1")

	assert.False(t, report.AllOK())
	assert.Error(t, report.Errors[entity.TypeAddress])
	assert.Equal(t, 2, report.Counts[entity.TypeProduct])
	assert.Equal(t, 1, report.Counts[entity.TypeCard])
	assert.Equal(t, 2, cache.Len(entity.TypeProduct))
}

func TestBulkSyncer_SyncAll_CacheWriteFailure(t *testing.T) {
	store := testutil.NewFakeDocStore()
	cache := testutil.NewFakeEntityCache()
	seedUser(store, "u1")

	cache.PutFunc = func(ctx context.Context, entityType entity.Type, entityID string, data map[string]any) error {
		if entityType == entity.TypeProduct {
			return errors.New("disk full")
		}
		return nil
	}

	report := newBulkSyncer(store, cache).SyncAll(context.Background(), "u1")

	assert.False(t, report.AllOK())
	assert.Error(t, report.Errors[entity.TypeProduct])
	assert.NoError(t, report.Errors[entity.TypeOrder])
}
