package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	"github.com/taskgoapp/taskgo-sync/internal/domain/outbox"
)

// OutboxStore implements outbox.Repository on SQLite.
type OutboxStore struct {
	db *sql.DB
}

func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

// Upsert schedules an entry, debouncing by (entity_type, entity_id).
// An existing pending or syncing row for the key takes the new payload
// and operation with a fresh retry budget, keeps the later of the two
// due times, and returns to pending; a mid-flight completion for the
// old payload then no-ops. An empty entity_id is a new document, never
// debounced: every such create gets its own entry.
func (s *OutboxStore) Upsert(ctx context.Context, e *outbox.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()

	var replaced int64
	if e.EntityID != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE outbox
			 SET operation = ?, payload = ?, due_at = MAX(due_at, ?), status = 'pending',
			     retry_count = 0, last_error = NULL, updated_at = ?
			 WHERE entity_type = ? AND entity_id = ? AND status IN ('pending', 'syncing')`,
			string(e.Operation), []byte(e.Payload), e.DueAt.UnixMilli(), now,
			string(e.EntityType), e.EntityID,
		)
		if err != nil {
			return fmt.Errorf("debounce outbox entry: %w", err)
		}
		if replaced, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("debounce outbox entry: %w", err)
		}
	}

	if replaced == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO outbox (id, entity_type, entity_id, operation, payload, due_at, status, retry_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID.String(), string(e.EntityType), e.EntityID, string(e.Operation),
			[]byte(e.Payload), e.DueAt.UnixMilli(), string(outbox.StatusPending), e.RetryCount,
			e.CreatedAt.UnixMilli(), now,
		)
		if err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

func (s *OutboxStore) Due(ctx context.Context, now time.Time, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, operation, payload, due_at, status, retry_count, last_error, created_at, updated_at
		 FROM outbox
		 WHERE status = 'pending' AND due_at <= ?
		 ORDER BY due_at ASC
		 LIMIT ?`,
		now.UnixMilli(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []*outbox.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) GetInFlight(ctx context.Context, entityType entity.Type, entityID string) (*outbox.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, entity_type, entity_id, operation, payload, due_at, status, retry_count, last_error, created_at, updated_at
		 FROM outbox
		 WHERE entity_type = ? AND entity_id = ? AND status IN ('pending', 'syncing')`,
		string(entityType), entityID,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domainErrors.ErrEntryNotFound, entityType, entityID)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *OutboxStore) MarkSyncing(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id,
		`UPDATE outbox SET status = 'syncing', updated_at = ? WHERE id = ? AND status = 'pending'`,
		true)
}

// MarkCompleted only applies while the entry is still syncing. If a
// newer schedule reset it to pending meanwhile, the completion of the
// older payload no-ops and the newer state syncs on a later cycle.
func (s *OutboxStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id,
		`UPDATE outbox SET status = 'completed', updated_at = ? WHERE id = ? AND status = 'syncing'`,
		false)
}

func (s *OutboxStore) Reschedule(ctx context.Context, id uuid.UUID, dueAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE outbox
		 SET status = 'pending', retry_count = retry_count + 1, due_at = ?, updated_at = ?
		 WHERE id = ? AND status = 'syncing'`,
		dueAt.UnixMilli(), time.Now().UnixMilli(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("reschedule outbox entry: %w", err)
	}
	return requireTransition(res, id)
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'failed', last_error = ?, updated_at = ?
		 WHERE id = ? AND status IN ('pending', 'syncing')`,
		reason, time.Now().UnixMilli(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("mark outbox entry failed: %w", err)
	}
	return requireTransition(res, id)
}

func (s *OutboxStore) SetEntityID(ctx context.Context, id uuid.UUID, entityID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET entity_id = ?, updated_at = ? WHERE id = ?`,
		entityID, time.Now().UnixMilli(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("set outbox entity id: %w", err)
	}
	return nil
}

func (s *OutboxStore) CountByStatus(ctx context.Context, status outbox.Status) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE status = ?`, string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outbox entries: %w", err)
	}
	return n, nil
}

func (s *OutboxStore) PurgeFinished(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE status IN ('completed', 'failed') AND updated_at < ?`,
		before.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge outbox entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge outbox entries: %w", err)
	}
	return int(n), nil
}

func (s *OutboxStore) transition(ctx context.Context, id uuid.UUID, query string, strict bool) error {
	res, err := s.db.ExecContext(ctx, query, time.Now().UnixMilli(), id.String())
	if err != nil {
		return fmt.Errorf("outbox transition: %w", err)
	}
	if !strict {
		return nil
	}
	return requireTransition(res, id)
}

func requireTransition(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("outbox transition: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: entry %s", domainErrors.ErrInvalidStateTransition, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*outbox.Entry, error) {
	var (
		e                     outbox.Entry
		id, etype, op, status string
		payload               []byte
		dueAt, created, upd   int64
		lastError             sql.NullString
	)
	err := row.Scan(&id, &etype, &e.EntityID, &op, &payload, &dueAt, &status, &e.RetryCount, &lastError, &created, &upd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan outbox entry: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse outbox entry id %q: %w", id, err)
	}
	e.ID = parsed
	e.EntityType = entity.Type(etype)
	e.Operation = outbox.Operation(op)
	e.Payload = payload
	e.DueAt = time.UnixMilli(dueAt)
	e.Status = outbox.Status(status)
	e.CreatedAt = time.UnixMilli(created)
	e.UpdatedAt = time.UnixMilli(upd)
	if lastError.Valid {
		e.LastError = &lastError.String
	}
	return &e, nil
}
