package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
)

// MaxRetries is the retry ceiling for transient dispatch failures. An
// entry that fails while RetryCount has already reached this value is
// marked failed instead of being rescheduled.
const MaxRetries = 3

type Status string

const (
	StatusPending   Status = "pending"
	StatusSyncing   Status = "syncing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Entry is a scheduled, not-yet-confirmed remote mutation. At most one
// entry per (EntityType, EntityID) may be pending or syncing at a time;
// scheduling over an existing one replaces the payload and pushes DueAt
// forward instead of creating a second entry.
type Entry struct {
	ID         uuid.UUID
	EntityType entity.Type
	// EntityID is the remote document id. Empty on create means the
	// executor allocates one at dispatch time.
	EntityID   string
	Operation  Operation
	Payload    json.RawMessage
	DueAt      time.Time
	Status     Status
	RetryCount int
	LastError  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewEntry(entityType entity.Type, entityID string, op Operation, payload json.RawMessage, dueAt time.Time) *Entry {
	now := time.Now()
	return &Entry{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  op,
		Payload:    payload,
		DueAt:      dueAt,
		Status:     StatusPending,
		RetryCount: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// InFlight reports whether the entry still occupies its
// (EntityType, EntityID) slot.
func (e *Entry) InFlight() bool {
	return e.Status == StatusPending || e.Status == StatusSyncing
}

// RetriesExhausted reports whether another transient failure must mark
// the entry failed rather than reschedule it.
func (e *Entry) RetriesExhausted() bool {
	return e.RetryCount >= MaxRetries
}
