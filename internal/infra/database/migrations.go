package database

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS registration_cursor (
	id         SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	next_row   INTEGER NOT NULL CHECK (next_row >= 1),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ticket_records (
	id         BIGSERIAL PRIMARY KEY,
	ticket_id  TEXT UNIQUE,
	row_index  INTEGER NOT NULL,
	attempt    INTEGER NOT NULL DEFAULT 1,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL,
	session    TEXT NOT NULL,
	status     TEXT NOT NULL CHECK (status IN ('sent', 'failed')),
	message_id TEXT,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ticket_records_row_session ON ticket_records (row_index, session);
`

// Migrate applies the ledger schema. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("applying ledger schema: %w", err)
	}
	return nil
}
