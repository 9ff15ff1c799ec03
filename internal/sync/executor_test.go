package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
	"github.com/taskgoapp/taskgo-sync/internal/domain/outbox"
	"github.com/taskgoapp/taskgo-sync/internal/testutil"
)

func TestExecutor_Apply_CreateWritesPublicDocument(t *testing.T) {
	store := testutil.NewFakeDocStore()
	x := NewExecutor(store, zerolog.Nop())

	p := testutil.NewTestProduct("seller-1", 100)
	e := testutil.NewTestEntry(p, outbox.OpCreate)

	require.NoError(t, x.Apply(context.Background(), e))

	doc := store.Doc("products", p.ID)
	require.NotNil(t, doc)
	assert.Equal(t, p.ID, doc["id"])
	assert.Equal(t, "seller-1", doc["sellerId"])
	assert.Equal(t, "Cordless drill", doc["title"])
}

func TestExecutor_Apply_CreateAllocatesDocumentID(t *testing.T) {
	store := testutil.NewFakeDocStore()
	x := NewExecutor(store, zerolog.Nop())

	p := testutil.NewTestProduct("seller-1", 100)
	p.ID = ""
	e := outbox.NewEntry(entity.TypeProduct, "", outbox.OpCreate, testutil.RawPayload(p), time.Now())

	require.NoError(t, x.Apply(context.Background(), e))

	require.NotEmpty(t, e.EntityID, "executor must write the allocated id back into the entry")
	doc := store.Doc("products", e.EntityID)
	require.NotNil(t, doc)
	assert.Equal(t, e.EntityID, doc["id"])
}

func TestExecutor_Apply_CreateReplayUsesRecordedID(t *testing.T) {
	store := testutil.NewFakeDocStore()
	x := NewExecutor(store, zerolog.Nop())

	p := testutil.NewTestProduct("seller-1", 100)
	p.ID = ""
	e := outbox.NewEntry(entity.TypeProduct, "", outbox.OpCreate, testutil.RawPayload(p), time.Now())

	require.NoError(t, x.Apply(context.Background(), e))
	first := e.EntityID

	// Replaying the same entry (crash between write and completion)
	// targets the same document instead of allocating a second one.
	require.NoError(t, x.Apply(context.Background(), e))
	assert.Equal(t, first, e.EntityID)

	docs, err := store.List(context.Background(), "products")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestExecutor_Apply_UpdateWithoutIDIsPermanent(t *testing.T) {
	store := testutil.NewFakeDocStore()
	x := NewExecutor(store, zerolog.Nop())

	p := testutil.NewTestProduct("seller-1", 100)
	p.ID = ""
	e := outbox.NewEntry(entity.TypeProduct, "", outbox.OpUpdate, testutil.RawPayload(p), time.Now())

	err := x.Apply(context.Background(), e)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrMalformedPayload)
	assert.True(t, domainErrors.Permanent(err))
}

func TestExecutor_Apply_MalformedPayloadIsPermanent(t *testing.T) {
	store := testutil.NewFakeDocStore()
	x := NewExecutor(store, zerolog.Nop())

	tests := []struct {
		name    string
		payload []byte
	}{
		{"invalid json", []byte(`{not json`)},
		{"missing required fields", []byte(`{"id":"p1"}`)},
		{"zero updatedAt", []byte(`{"id":"p1","sellerId":"s1","title":"x","updatedAt":0}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := outbox.NewEntry(entity.TypeProduct, "p1", outbox.OpUpdate, tt.payload, time.Now())
			err := x.Apply(context.Background(), e)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainErrors.ErrMalformedPayload)
		})
	}
}

func TestExecutor_Apply_UnknownEntityTypeIsPermanent(t *testing.T) {
	store := testutil.NewFakeDocStore()
	x := NewExecutor(store, zerolog.Nop())

	e := outbox.NewEntry(entity.Type("invoice"), "i1", outbox.OpCreate, []byte(`{}`), time.Now())
	err := x.Apply(context.Background(), e)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrUnknownEntityType)
}

func TestExecutor_Apply_HardDeleteRemovesDocument(t *testing.T) {
	store := testutil.NewFakeDocStore()
	x := NewExecutor(store, zerolog.Nop())

	store.Seed("services", "svc-1", map[string]any{"id": "svc-1", "providerId": "u1"})

	e := outbox.NewEntry(entity.TypeService, "svc-1", outbox.OpDelete, []byte(`{}`), time.Now())
	require.NoError(t, x.Apply(context.Background(), e))

	assert.Nil(t, store.Doc("services", "svc-1"))
}

func TestExecutor_Apply_SoftDeleteDeactivatesProduct(t *testing.T) {
	store := testutil.NewFakeDocStore()
	x := NewExecutor(store, zerolog.Nop())
	x.now = func() time.Time { return time.UnixMilli(5000) }

	store.Seed("products", "p1", map[string]any{
		"id": "p1", "sellerId": "s1", "title": "drill", "active": true, "updatedAt": int64(100),
	})

	e := outbox.NewEntry(entity.TypeProduct, "p1", outbox.OpDelete, []byte(`{}`), time.Now())
	require.NoError(t, x.Apply(context.Background(), e))

	doc := store.Doc("products", "p1")
	require.NotNil(t, doc, "soft delete keeps the document")
	assert.Equal(t, false, doc["active"])
	assert.EqualValues(t, 5000, doc["updatedAt"])
	assert.Equal(t, "drill", doc["title"], "soft delete merges, the rest of the body survives")
}

func TestExecutor_Apply_DeleteUnsupportedType(t *testing.T) {
	store := testutil.NewFakeDocStore()
	x := NewExecutor(store, zerolog.Nop())

	e := outbox.NewEntry(entity.TypeOrder, "o1", outbox.OpDelete, []byte(`{}`), time.Now())
	err := x.Apply(context.Background(), e)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrUnsupportedOperation)
	assert.True(t, domainErrors.Permanent(err))
}

func TestExecutor_Apply_DeleteWithoutIDIsPermanent(t *testing.T) {
	store := testutil.NewFakeDocStore()
	x := NewExecutor(store, zerolog.Nop())

	e := outbox.NewEntry(entity.TypeService, "", outbox.OpDelete, []byte(`{}`), time.Now())
	err := x.Apply(context.Background(), e)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrMalformedPayload)
}

func TestExecutor_Apply_SettingsMergeIntoUserDocument(t *testing.T) {
	store := testutil.NewFakeDocStore()
	x := NewExecutor(store, zerolog.Nop())

	store.Seed("users", "u1", map[string]any{
		"id": "u1", "name": "Ana", "updatedAt": int64(100),
	})

	s := &entity.Settings{UserID: "u1", NotificationsEnabled: true, Language: "pt-BR", UpdatedAt: 200}
	e := testutil.NewTestEntry(s, outbox.OpUpdate)

	require.NoError(t, x.Apply(context.Background(), e))

	doc := store.Doc("users", "u1")
	require.NotNil(t, doc)
	assert.Equal(t, "Ana", doc["name"], "settings merge must not wipe profile fields")
	assert.Equal(t, true, doc["notificationsEnabled"])
	assert.Equal(t, "pt-BR", doc["language"])
	_, hasID := doc["id"]
	assert.True(t, hasID)
	assert.Equal(t, "u1", doc["id"])
}

func TestExecutor_Apply_RemoteFailureIsTransient(t *testing.T) {
	store := testutil.NewFakeDocStore()
	store.FailAll = errors.New("connection reset")
	x := NewExecutor(store, zerolog.Nop())

	p := testutil.NewTestProduct("seller-1", 100)
	e := testutil.NewTestEntry(p, outbox.OpCreate)

	err := x.Apply(context.Background(), e)
	require.Error(t, err)
	assert.False(t, domainErrors.Permanent(err))
}
