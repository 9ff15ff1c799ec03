package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	"github.com/taskgoapp/taskgo-sync/internal/infrastructure/observability"
	syncengine "github.com/taskgoapp/taskgo-sync/internal/sync"
	"github.com/taskgoapp/taskgo-sync/internal/testutil"
)

type syncFixture struct {
	router *chi.Mux
	repo   *testutil.MockOutboxRepository
	store  *testutil.FakeDocStore
}

func newSyncFixture(t *testing.T, debounce time.Duration) *syncFixture {
	t.Helper()
	repo := testutil.NewMockOutboxRepository()
	store := testutil.NewFakeDocStore()
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())

	scheduler := syncengine.NewScheduler(repo, debounce, zerolog.Nop())
	executor := syncengine.NewExecutor(store, zerolog.Nop())
	loop := syncengine.NewLoop(repo, executor, syncengine.LoopConfig{
		PollInterval: time.Second,
		RetryBackoff: time.Second,
		PurgeAge:     time.Hour,
		BatchSize:    50,
	}, zerolog.Nop(), metrics)

	r := chi.NewRouter()
	syncH := NewSyncController(scheduler, loop)
	r.Post("/sync/schedule", syncH.Schedule)
	r.Post("/sync/cycle", syncH.RunCycle)
	r.Post("/sync/force", syncH.ForceSync)
	r.Get("/sync/pending", syncH.Pending)

	return &syncFixture{router: r, repo: repo, store: store}
}

func (f *syncFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestSyncController_Schedule(t *testing.T) {
	f := newSyncFixture(t, time.Minute)

	w := f.do(t, "POST", "/sync/schedule", ScheduleRequest{
		EntityType: "product",
		EntityID:   "p1",
		Operation:  "update",
		Payload:    map[string]any{"id": "p1", "sellerId": "u1", "title": "drill", "updatedAt": 100},
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.repo.All(), 1)
	assert.Equal(t, entity.TypeProduct, f.repo.All()[0].EntityType)
}

func TestSyncController_Schedule_UnknownType(t *testing.T) {
	f := newSyncFixture(t, time.Minute)

	w := f.do(t, "POST", "/sync/schedule", ScheduleRequest{
		EntityType: "invoice",
		Operation:  "create",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncController_Schedule_InvalidOperation(t *testing.T) {
	f := newSyncFixture(t, time.Minute)

	w := f.do(t, "POST", "/sync/schedule", ScheduleRequest{
		EntityType: "product",
		Operation:  "upsert",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Code)
}

func TestSyncController_CycleDrainsDueEntries(t *testing.T) {
	f := newSyncFixture(t, 0)

	w := f.do(t, "POST", "/sync/schedule", ScheduleRequest{
		EntityType: "product",
		EntityID:   "p1",
		Operation:  "update",
		Payload:    map[string]any{"id": "p1", "sellerId": "u1", "title": "drill", "updatedAt": 100},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = f.do(t, "POST", "/sync/cycle", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NotNil(t, f.store.Doc("products", "p1"), "the cycle pushed the document remotely")
}

func TestSyncController_Pending(t *testing.T) {
	f := newSyncFixture(t, time.Minute)

	w := f.do(t, "GET", "/sync/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp PendingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Pending)

	f.do(t, "POST", "/sync/schedule", ScheduleRequest{
		EntityType: "product",
		EntityID:   "p1",
		Operation:  "update",
		Payload:    map[string]any{"id": "p1", "sellerId": "u1", "title": "drill", "updatedAt": 100},
	})

	w = f.do(t, "GET", "/sync/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Pending)
}

func TestSyncController_ForceSync_SkipsDebounce(t *testing.T) {
	f := newSyncFixture(t, time.Hour)

	f.do(t, "POST", "/sync/schedule", ScheduleRequest{
		EntityType: "product",
		EntityID:   "p1",
		Operation:  "update",
		Payload:    map[string]any{"id": "p1", "sellerId": "u1", "title": "drill", "updatedAt": 100},
	})

	w := f.do(t, "POST", "/sync/force", ForceSyncRequest{EntityType: "product", EntityID: "p1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ForceSyncResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Dispatched)
	assert.NotNil(t, f.store.Doc("products", "p1"))
}

func TestSyncController_ForceSync_NothingPending(t *testing.T) {
	f := newSyncFixture(t, time.Minute)

	w := f.do(t, "POST", "/sync/force", ForceSyncRequest{EntityType: "product", EntityID: "absent"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ForceSyncResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Dispatched)
}

func TestSyncController_ForceSync_MissingFields(t *testing.T) {
	f := newSyncFixture(t, time.Minute)

	w := f.do(t, "POST", "/sync/force", ForceSyncRequest{EntityType: "product"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
