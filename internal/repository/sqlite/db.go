// Package sqlite is the durable local store of the client engine: the
// outbox table and the entity cache, on an embedded SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS outbox (
    id          TEXT PRIMARY KEY,
    entity_type TEXT    NOT NULL,
    entity_id   TEXT    NOT NULL,
    operation   TEXT    NOT NULL,
    payload     BLOB    NOT NULL,
    due_at      INTEGER NOT NULL,
    status      TEXT    NOT NULL DEFAULT 'pending',
    retry_count INTEGER NOT NULL DEFAULT 0,
    last_error  TEXT,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

-- At most one pending/syncing entry per key; the scheduler upserts
-- into this slot instead of inserting a second entry. An empty
-- entity_id means a new document, so each such create keeps its own
-- row.
CREATE UNIQUE INDEX IF NOT EXISTS outbox_inflight_key
    ON outbox (entity_type, entity_id)
    WHERE status IN ('pending', 'syncing') AND entity_id <> '';

CREATE INDEX IF NOT EXISTS outbox_due ON outbox (status, due_at);

CREATE TABLE IF NOT EXISTS entity_cache (
    entity_type   TEXT    NOT NULL,
    entity_id     TEXT    NOT NULL,
    data          BLOB    NOT NULL,
    updated_at_ms INTEGER NOT NULL,
    cached_at     INTEGER NOT NULL,
    PRIMARY KEY (entity_type, entity_id)
);
`

// Open opens (creating if necessary) the local database at path and
// applies the schema. Use ":memory:" for tests.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// One writer at a time; mutation call sites serialize here.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return db, nil
}
