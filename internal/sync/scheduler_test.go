package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	"github.com/taskgoapp/taskgo-sync/internal/domain/outbox"
	"github.com/taskgoapp/taskgo-sync/internal/testutil"
)

func TestScheduler_Schedule_EnqueuesPending(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	s := NewScheduler(repo, time.Minute, zerolog.Nop())

	p := testutil.NewTestProduct("seller-1", 100)
	err := s.Schedule(context.Background(), entity.TypeProduct, p.ID, outbox.OpCreate, p)
	require.NoError(t, err)

	entries := repo.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, outbox.StatusPending, e.Status)
	assert.Equal(t, entity.TypeProduct, e.EntityType)
	assert.Equal(t, p.ID, e.EntityID)
	assert.True(t, e.DueAt.After(time.Now().Add(30*time.Second)), "due time should be pushed out by the debounce delay")
}

func TestScheduler_Schedule_DebouncesSameEntity(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	s := NewScheduler(repo, time.Minute, zerolog.Nop())
	ctx := context.Background()

	p := testutil.NewTestProduct("seller-1", 100)
	require.NoError(t, s.Schedule(ctx, entity.TypeProduct, p.ID, outbox.OpCreate, p))

	first := repo.All()[0]

	p.Title = "Cordless drill, 18V"
	p.UpdatedAt = 200
	require.NoError(t, s.Schedule(ctx, entity.TypeProduct, p.ID, outbox.OpUpdate, p))

	entries := repo.All()
	require.Len(t, entries, 1, "rescheduling the same entity must not create a second entry")

	e := entries[0]
	assert.Equal(t, outbox.OpUpdate, e.Operation)
	assert.False(t, e.DueAt.Before(first.DueAt), "due time must never move backward")

	var decoded entity.Product
	require.NoError(t, json.Unmarshal(e.Payload, &decoded))
	assert.Equal(t, "Cordless drill, 18V", decoded.Title)
	assert.EqualValues(t, 200, decoded.UpdatedAt)
}

func TestScheduler_Schedule_DistinctEntitiesGetDistinctEntries(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	s := NewScheduler(repo, time.Minute, zerolog.Nop())
	ctx := context.Background()

	p1 := testutil.NewTestProduct("seller-1", 100)
	p2 := testutil.NewTestProduct("seller-1", 100)
	require.NoError(t, s.Schedule(ctx, entity.TypeProduct, p1.ID, outbox.OpCreate, p1))
	require.NoError(t, s.Schedule(ctx, entity.TypeProduct, p2.ID, outbox.OpCreate, p2))

	assert.Len(t, repo.All(), 2)
}

func TestScheduler_Schedule_EmptyIDCreatesAreDistinct(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	s := NewScheduler(repo, time.Minute, zerolog.Nop())
	ctx := context.Background()

	first := testutil.NewTestProduct("seller-1", 100)
	first.ID = ""
	second := testutil.NewTestProduct("seller-1", 200)
	second.ID = ""
	second.Title = "Orbital sander"

	require.NoError(t, s.Schedule(ctx, entity.TypeProduct, "", outbox.OpCreate, first))
	require.NoError(t, s.Schedule(ctx, entity.TypeProduct, "", outbox.OpCreate, second))

	entries := repo.All()
	require.Len(t, entries, 2, "an empty id means a new document, not a debounce key")

	var titles []string
	for _, e := range entries {
		var doc map[string]any
		require.NoError(t, json.Unmarshal(e.Payload, &doc))
		titles = append(titles, doc["title"].(string))
	}
	assert.ElementsMatch(t, []string{"Cordless drill", "Orbital sander"}, titles)
}

func TestScheduler_Schedule_LaterDueTimeWins(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	s := NewScheduler(repo, time.Minute, zerolog.Nop())
	ctx := context.Background()

	base := time.Now()
	p := testutil.NewTestProduct("seller-1", 100)

	s.now = func() time.Time { return base }
	require.NoError(t, s.Schedule(ctx, entity.TypeProduct, p.ID, outbox.OpCreate, p))

	// A clock hiccup: the second schedule computes an earlier due time.
	s.now = func() time.Time { return base.Add(-30 * time.Second) }
	require.NoError(t, s.Schedule(ctx, entity.TypeProduct, p.ID, outbox.OpUpdate, p))

	e := repo.All()[0]
	assert.Equal(t, base.Add(time.Minute).Unix(), e.DueAt.Unix())
}

func TestScheduler_PendingCount(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	s := NewScheduler(repo, 0, zerolog.Nop())
	ctx := context.Background()

	n, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for i := 0; i < 3; i++ {
		p := testutil.NewTestProduct("seller-1", 100)
		require.NoError(t, s.Schedule(ctx, entity.TypeProduct, p.ID, outbox.OpCreate, p))
	}

	n, err = s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
