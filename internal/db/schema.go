package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Reservations are never deleted on
// checkin: released rows stay behind as the history log and are served as
// conflict evidence for serialized units.
const schema = `
CREATE TABLE IF NOT EXISTS operators (
    id            INTEGER PRIMARY KEY,
    name          TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'viewer' CHECK (role IN ('admin', 'editor', 'viewer')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_operators_name_active
    ON operators(name) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS gear_units (
    id             TEXT PRIMARY KEY,
    label          TEXT NOT NULL,
    category       TEXT NOT NULL DEFAULT '',
    serial         TEXT NOT NULL DEFAULT '',
    quantity       INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 1),
    status         TEXT NOT NULL DEFAULT 'available'
                   CHECK (status IN ('available', 'checked_out', 'maintenance', 'retired')),
    checked_out_by TEXT NOT NULL DEFAULT '',
    photo          BLOB,
    photo_mime     TEXT,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at     DATETIME
);

CREATE TABLE IF NOT EXISTS gear_reservations (
    id          TEXT PRIMARY KEY,
    gear_id     TEXT NOT NULL REFERENCES gear_units(id),
    event_id    TEXT NOT NULL DEFAULT '',
    check_out   DATE NOT NULL,
    check_in    DATE NOT NULL,
    quantity    INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 1),
    released_at DATETIME,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_gear_reservations_gear
    ON gear_reservations(gear_id);

CREATE TABLE IF NOT EXISTS event_docs (
    event_id   TEXT PRIMARY KEY,
    doc        TEXT NOT NULL,
    revision   INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS packages (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    doc        TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes. Every statement is
// idempotent, so it is safe to run on every startup.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
