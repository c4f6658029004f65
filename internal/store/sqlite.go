// Package store provides SQLite-backed persistence for the Tandem engine.
//
// The store stands in for the replicated document store the clients
// synchronize through: three collections (sessions, activities, journal
// entries), whole-document reads, and conditional writes keyed on
// state_version. There is no locking primitive anywhere else; correctness
// of concurrent turn submissions rests entirely on these guards.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id           TEXT PRIMARY KEY,
	participant_a        TEXT NOT NULL DEFAULT '',
	participant_b        TEXT NOT NULL DEFAULT '',
	display_name_a       TEXT NOT NULL DEFAULT '',
	display_name_b       TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'pending_partner_join',
	score                INTEGER NOT NULL DEFAULT 0,
	current_activity_id  TEXT NOT NULL DEFAULT '',
	experience_step      INTEGER NOT NULL DEFAULT 0,
	experience_completed INTEGER NOT NULL DEFAULT 0,
	completed_variants   TEXT NOT NULL DEFAULT '[]',
	state_version        INTEGER NOT NULL DEFAULT 1,
	created_at_unix      INTEGER NOT NULL DEFAULT 0,
	updated_at_unix      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_participant_a ON sessions(participant_a);
CREATE INDEX IF NOT EXISTS idx_sessions_participant_b ON sessions(participant_b);

CREATE TABLE IF NOT EXISTS activities (
	activity_id       TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL,
	variant           TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'in-progress',
	turn              TEXT NOT NULL DEFAULT '',
	participants      TEXT NOT NULL DEFAULT '[]',
	payload_json      TEXT NOT NULL DEFAULT '{}',
	result_json       TEXT NOT NULL DEFAULT '',
	notice_json       TEXT NOT NULL DEFAULT '',
	state_version     INTEGER NOT NULL DEFAULT 1,
	created_at_unix   INTEGER NOT NULL DEFAULT 0,
	updated_at_unix   INTEGER NOT NULL DEFAULT 0,
	completed_at_unix INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_activities_session ON activities(session_id, status);

CREATE TABLE IF NOT EXISTS journal_entries (
	entry_id        TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	activity_id     TEXT NOT NULL,
	variant         TEXT NOT NULL,
	activity_name   TEXT NOT NULL DEFAULT '',
	result_json     TEXT NOT NULL DEFAULT '{}',
	participant_ids TEXT NOT NULL DEFAULT '[]',
	created_at_unix INTEGER NOT NULL,
	UNIQUE(session_id, activity_id)
);
CREATE INDEX IF NOT EXISTS idx_journal_session ON journal_entries(session_id, created_at_unix);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}

// NewID returns a ULID document id: sortable by creation time, unique
// without coordination.
func NewID() string {
	return ulid.Make().String()
}
