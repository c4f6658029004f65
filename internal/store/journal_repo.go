package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tandemlabs/tandem-engine/internal/domain"
)

// JournalRepo handles the append-only archival log of completed
// activities. There is no update or delete operation.
type JournalRepo struct{}

// Append inserts a journal entry. The (session_id, activity_id) unique
// constraint makes a retried completion a silent no-op: the log never
// gains a duplicate entry for the same activity.
func (r *JournalRepo) Append(ctx context.Context, db execer, e domain.JournalEntry) error {
	const q = `INSERT OR IGNORE INTO journal_entries
	(entry_id, session_id, activity_id, variant, activity_name, result_json, participant_ids, created_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		e.ID,
		e.SessionID,
		e.ActivityID,
		string(e.Variant),
		e.ActivityName,
		e.ResultJSON,
		marshalStrings(e.ParticipantIDs),
		e.CreatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// ListBySession returns a session's journal entries, newest first.
func (r *JournalRepo) ListBySession(ctx context.Context, db *sql.DB, sessionID string) ([]domain.JournalEntry, error) {
	const q = `SELECT entry_id, session_id, activity_id, variant, activity_name, result_json, participant_ids, created_at_unix
FROM journal_entries
WHERE session_id = ?
ORDER BY created_at_unix DESC, entry_id DESC`

	rows, err := db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var variant, participants string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ActivityID, &variant, &e.ActivityName, &e.ResultJSON, &participants, &e.CreatedAtUnix); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Variant = domain.ActivityVariant(variant)
		if err := json.Unmarshal([]byte(participants), &e.ParticipantIDs); err != nil {
			return nil, fmt.Errorf("decode participant ids: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountBySession returns the number of entries archived for a session.
func (r *JournalRepo) CountBySession(ctx context.Context, db *sql.DB, sessionID string) (int, error) {
	const q = `SELECT COUNT(*) FROM journal_entries WHERE session_id = ?`
	var n int
	if err := db.QueryRowContext(ctx, q, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return n, nil
}
