package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tandemlabs/tandem-engine/internal/domain"
)

// SessionRepo handles persistence for Session documents.
type SessionRepo struct{}

const sessionColumns = `session_id, participant_a, participant_b, display_name_a, display_name_b,
	status, score, current_activity_id, experience_step, experience_completed,
	completed_variants, state_version, created_at_unix, updated_at_unix`

// Create inserts a new session document.
func (r *SessionRepo) Create(ctx context.Context, db *sql.DB, s domain.Session) error {
	const q = `INSERT INTO sessions (` + sessionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		s.ID,
		s.ParticipantA,
		s.ParticipantB,
		s.DisplayNameA,
		s.DisplayNameB,
		string(s.Status),
		s.Score,
		s.CurrentActivityID,
		s.ExperienceStep,
		boolToInt(s.ExperienceCompleted),
		marshalVariants(s.CompletedVariants),
		s.StateVersion,
		s.CreatedAtUnix,
		s.UpdatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepo) GetByID(ctx context.Context, db *sql.DB, sessionID string) (*domain.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE session_id = ?`
	return scanSession(db.QueryRowContext(ctx, q, sessionID))
}

// FindByParticipant returns the session occupied by the given participant
// in either slot, or ErrSessionNotFound.
func (r *SessionRepo) FindByParticipant(ctx context.Context, db *sql.DB, userID string) (*domain.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions
WHERE participant_a = ? OR participant_b = ?
LIMIT 1`
	return scanSession(db.QueryRowContext(ctx, q, userID, userID))
}

// UpdateState writes the full session state using optimistic locking.
// The write only succeeds if state_version still matches the version the
// caller read; otherwise ErrVersionConflict is returned and the caller
// must re-read before retrying.
func (r *SessionRepo) UpdateState(ctx context.Context, db execer, s domain.Session) error {
	const q = `UPDATE sessions SET
		participant_a = ?,
		participant_b = ?,
		display_name_a = ?,
		display_name_b = ?,
		status = ?,
		score = ?,
		current_activity_id = ?,
		experience_step = ?,
		experience_completed = ?,
		completed_variants = ?,
		state_version = state_version + 1,
		updated_at_unix = ?
	WHERE session_id = ? AND state_version = ?`

	res, err := db.ExecContext(ctx, q,
		s.ParticipantA,
		s.ParticipantB,
		s.DisplayNameA,
		s.DisplayNameB,
		string(s.Status),
		s.Score,
		s.CurrentActivityID,
		s.ExperienceStep,
		boolToInt(s.ExperienceCompleted),
		marshalVariants(s.CompletedVariants),
		s.UpdatedAtUnix,
		s.ID,
		s.StateVersion,
	)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// Delete removes a session document. Deleting an absent session is a no-op.
func (r *SessionRepo) Delete(ctx context.Context, db *sql.DB, sessionID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// execer abstracts *sql.DB and *sql.Tx for writes that run both ways.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var s domain.Session
	var status, completedVariants string
	var completed int
	err := row.Scan(&s.ID, &s.ParticipantA, &s.ParticipantB, &s.DisplayNameA, &s.DisplayNameB,
		&status, &s.Score, &s.CurrentActivityID, &s.ExperienceStep, &completed,
		&completedVariants, &s.StateVersion, &s.CreatedAtUnix, &s.UpdatedAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.Status = domain.SessionStatus(status)
	s.ExperienceCompleted = completed != 0
	if err := json.Unmarshal([]byte(completedVariants), &s.CompletedVariants); err != nil {
		return nil, fmt.Errorf("decode completed variants: %w", err)
	}
	return &s, nil
}

func marshalVariants(vs []domain.ActivityVariant) string {
	if vs == nil {
		vs = []domain.ActivityVariant{}
	}
	b, _ := json.Marshal(vs)
	return string(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
