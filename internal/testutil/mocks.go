package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskgoapp/taskgo-sync/internal/docstore"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
	"github.com/taskgoapp/taskgo-sync/internal/domain/outbox"
)

// --- Outbox Repository Mock ---

// MockOutboxRepository is an in-memory implementation of
// outbox.Repository with the same debounce and transition semantics as
// the SQLite store. Any method can be overridden via its Func field.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*outbox.Entry

	UpsertFunc        func(ctx context.Context, e *outbox.Entry) error
	DueFunc           func(ctx context.Context, now time.Time, limit int) ([]*outbox.Entry, error)
	GetInFlightFunc   func(ctx context.Context, entityType entity.Type, entityID string) (*outbox.Entry, error)
	MarkSyncingFunc   func(ctx context.Context, id uuid.UUID) error
	MarkCompletedFunc func(ctx context.Context, id uuid.UUID) error
	RescheduleFunc    func(ctx context.Context, id uuid.UUID, dueAt time.Time) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID, reason string) error
	SetEntityIDFunc   func(ctx context.Context, id uuid.UUID, entityID string) error
	CountByStatusFunc func(ctx context.Context, status outbox.Status) (int, error)
	PurgeFinishedFunc func(ctx context.Context, before time.Time) (int, error)
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{entries: make(map[uuid.UUID]*outbox.Entry)}
}

func (m *MockOutboxRepository) Upsert(ctx context.Context, e *outbox.Entry) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.EntityID != "" {
		for _, existing := range m.entries {
			if existing.InFlight() && existing.EntityType == e.EntityType && existing.EntityID == e.EntityID {
				existing.Operation = e.Operation
				existing.Payload = e.Payload
				if e.DueAt.After(existing.DueAt) {
					existing.DueAt = e.DueAt
				}
				existing.Status = outbox.StatusPending
				existing.RetryCount = 0
				existing.LastError = nil
				existing.UpdatedAt = time.Now()
				return nil
			}
		}
	}
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *MockOutboxRepository) Due(ctx context.Context, now time.Time, limit int) ([]*outbox.Entry, error) {
	if m.DueFunc != nil {
		return m.DueFunc(ctx, now, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*outbox.Entry
	for _, e := range m.entries {
		if e.Status == outbox.StatusPending && !e.DueAt.After(now) {
			cp := *e
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MockOutboxRepository) GetInFlight(ctx context.Context, entityType entity.Type, entityID string) (*outbox.Entry, error) {
	if m.GetInFlightFunc != nil {
		return m.GetInFlightFunc(ctx, entityType, entityID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.InFlight() && e.EntityType == entityType && e.EntityID == entityID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrEntryNotFound
}

func (m *MockOutboxRepository) MarkSyncing(ctx context.Context, id uuid.UUID) error {
	if m.MarkSyncingFunc != nil {
		return m.MarkSyncingFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.Status != outbox.StatusPending {
		return domainErrors.ErrInvalidStateTransition
	}
	e.Status = outbox.StatusSyncing
	e.UpdatedAt = time.Now()
	return nil
}

func (m *MockOutboxRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	if m.MarkCompletedFunc != nil {
		return m.MarkCompletedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.Status != outbox.StatusSyncing {
		// A concurrent reschedule won; the stale completion is dropped.
		return nil
	}
	e.Status = outbox.StatusCompleted
	e.UpdatedAt = time.Now()
	return nil
}

func (m *MockOutboxRepository) Reschedule(ctx context.Context, id uuid.UUID, dueAt time.Time) error {
	if m.RescheduleFunc != nil {
		return m.RescheduleFunc(ctx, id, dueAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.Status != outbox.StatusSyncing {
		return domainErrors.ErrInvalidStateTransition
	}
	e.Status = outbox.StatusPending
	e.RetryCount++
	e.DueAt = dueAt
	e.UpdatedAt = time.Now()
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id, reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || !e.InFlight() {
		return domainErrors.ErrInvalidStateTransition
	}
	e.Status = outbox.StatusFailed
	e.LastError = &reason
	e.UpdatedAt = time.Now()
	return nil
}

func (m *MockOutboxRepository) SetEntityID(ctx context.Context, id uuid.UUID, entityID string) error {
	if m.SetEntityIDFunc != nil {
		return m.SetEntityIDFunc(ctx, id, entityID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domainErrors.ErrEntryNotFound
	}
	e.EntityID = entityID
	return nil
}

func (m *MockOutboxRepository) CountByStatus(ctx context.Context, status outbox.Status) (int, error) {
	if m.CountByStatusFunc != nil {
		return m.CountByStatusFunc(ctx, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *MockOutboxRepository) PurgeFinished(ctx context.Context, before time.Time) (int, error) {
	if m.PurgeFinishedFunc != nil {
		return m.PurgeFinishedFunc(ctx, before)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.entries {
		if (e.Status == outbox.StatusCompleted || e.Status == outbox.StatusFailed) && e.UpdatedAt.Before(before) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

// Entry returns a copy of the stored entry, or nil.
func (m *MockOutboxRepository) Entry(id uuid.UUID) *outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// All returns copies of every stored entry.
func (m *MockOutboxRepository) All() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*outbox.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// --- Document Store Fake ---

// FakeDocStore is an in-memory docstore.Store. Errs maps
// "collection/id" to an error returned by any operation touching that
// document; FailAll makes every call fail.
type FakeDocStore struct {
	mu      sync.Mutex
	docs    map[string]map[string]map[string]any
	Errs    map[string]error
	FailAll error
}

func NewFakeDocStore() *FakeDocStore {
	return &FakeDocStore{
		docs: make(map[string]map[string]map[string]any),
		Errs: make(map[string]error),
	}
}

func (f *FakeDocStore) fail(collection, id string) error {
	if f.FailAll != nil {
		return f.FailAll
	}
	return f.Errs[collection+"/"+id]
}

func (f *FakeDocStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	if err := f.fail(collection, id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[collection][id]
	if !ok {
		return nil, domainErrors.ErrDocumentNotFound
	}
	return copyDoc(doc), nil
}

func (f *FakeDocStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	if err := f.fail(collection, id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs[collection] == nil {
		f.docs[collection] = make(map[string]map[string]any)
	}
	if merge {
		existing, ok := f.docs[collection][id]
		if ok {
			merged := copyDoc(existing)
			for k, v := range data {
				merged[k] = v
			}
			f.docs[collection][id] = merged
			return nil
		}
	}
	f.docs[collection][id] = copyDoc(data)
	return nil
}

func (f *FakeDocStore) Delete(ctx context.Context, collection, id string) error {
	if err := f.fail(collection, id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs[collection], id)
	return nil
}

func (f *FakeDocStore) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	if err := f.fail(collection, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []docstore.Document
	for id, doc := range f.docs[collection] {
		out = append(out, docstore.Document{Collection: collection, ID: id, Data: copyDoc(doc)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeDocStore) ListByField(ctx context.Context, collection, field, value string) ([]docstore.Document, error) {
	if err := f.fail(collection, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []docstore.Document
	for id, doc := range f.docs[collection] {
		if s, ok := doc[field].(string); ok && s == value {
			out = append(out, docstore.Document{Collection: collection, ID: id, Data: copyDoc(doc)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Doc returns a copy of a stored document, or nil when absent.
func (f *FakeDocStore) Doc(collection, id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[collection][id]
	if !ok {
		return nil
	}
	return copyDoc(doc)
}

// Seed stores a document directly, bypassing error injection.
func (f *FakeDocStore) Seed(collection, id string, data map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs[collection] == nil {
		f.docs[collection] = make(map[string]map[string]any)
	}
	f.docs[collection][id] = copyDoc(data)
}

func copyDoc(doc map[string]any) map[string]any {
	cp := make(map[string]any, len(doc))
	for k, v := range doc {
		cp[k] = v
	}
	return cp
}

// --- Event Publisher Mock ---

// MockEventPublisher records published write events.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []docstore.WriteEvent

	PublishWriteFunc func(ctx context.Context, ev docstore.WriteEvent) error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) PublishWrite(ctx context.Context, ev docstore.WriteEvent) error {
	if m.PublishWriteFunc != nil {
		return m.PublishWriteFunc(ctx, ev)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MockEventPublisher) Events() []docstore.WriteEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]docstore.WriteEvent(nil), m.events...)
}

// --- Transaction Manager Fake ---

// FakeTxManager serializes transactions with a mutex; fn runs with the
// caller's context unchanged.
type FakeTxManager struct {
	mu sync.Mutex
}

func (f *FakeTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx)
}

// --- Entity Cache Fake ---

// FakeEntityCache is an in-memory local read cache keyed by
// (entity type, entity id).
type FakeEntityCache struct {
	mu   sync.Mutex
	data map[entity.Type]map[string]map[string]any

	PutFunc func(ctx context.Context, entityType entity.Type, entityID string, data map[string]any) error
}

func NewFakeEntityCache() *FakeEntityCache {
	return &FakeEntityCache{data: make(map[entity.Type]map[string]map[string]any)}
}

func (f *FakeEntityCache) Put(ctx context.Context, entityType entity.Type, entityID string, data map[string]any) error {
	if f.PutFunc != nil {
		return f.PutFunc(ctx, entityType, entityID, data)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[entityType] == nil {
		f.data[entityType] = make(map[string]map[string]any)
	}
	f.data[entityType][entityID] = copyDoc(data)
	return nil
}

func (f *FakeEntityCache) Get(ctx context.Context, entityType entity.Type, entityID string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.data[entityType][entityID]
	if !ok {
		return nil, domainErrors.ErrDocumentNotFound
	}
	return copyDoc(doc), nil
}

func (f *FakeEntityCache) List(ctx context.Context, entityType entity.Type) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, doc := range f.data[entityType] {
		out = append(out, copyDoc(doc))
	}
	return out, nil
}

func (f *FakeEntityCache) Delete(ctx context.Context, entityType entity.Type, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data[entityType], entityID)
	return nil
}

// Len reports how many entries the cache holds for the type.
func (f *FakeEntityCache) Len(entityType entity.Type) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data[entityType])
}
