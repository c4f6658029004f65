package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tandemlabs/tandem-engine/internal/domain"
)

// ActivityRepo handles persistence for Activity documents.
type ActivityRepo struct{}

const activityColumns = `activity_id, session_id, variant, status, turn, participants,
	payload_json, result_json, notice_json, state_version,
	created_at_unix, updated_at_unix, completed_at_unix`

// Create inserts a new activity document.
func (r *ActivityRepo) Create(ctx context.Context, db execer, a domain.Activity) error {
	const q = `INSERT INTO activities (` + activityColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		a.ID,
		a.SessionID,
		string(a.Variant),
		string(a.Status),
		a.Turn,
		marshalStrings(a.Participants),
		a.PayloadJSON,
		marshalResult(a.Result),
		marshalNotice(a.Notice),
		a.StateVersion,
		a.CreatedAtUnix,
		a.UpdatedAtUnix,
		a.CompletedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// GetByID retrieves an activity by its ID.
func (r *ActivityRepo) GetByID(ctx context.Context, db *sql.DB, activityID string) (*domain.Activity, error) {
	const q = `SELECT ` + activityColumns + ` FROM activities WHERE activity_id = ?`
	row := db.QueryRowContext(ctx, q, activityID)

	var a domain.Activity
	var variant, status, participants, resultJSON, noticeJSON string
	err := row.Scan(&a.ID, &a.SessionID, &variant, &status, &a.Turn, &participants,
		&a.PayloadJSON, &resultJSON, &noticeJSON, &a.StateVersion,
		&a.CreatedAtUnix, &a.UpdatedAtUnix, &a.CompletedAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrActivityNotFound
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	a.Variant = domain.ActivityVariant(variant)
	a.Status = domain.ActivityStatus(status)
	if err := json.Unmarshal([]byte(participants), &a.Participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	if resultJSON != "" {
		var res domain.Result
		if err := json.Unmarshal([]byte(resultJSON), &res); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		a.Result = &res
	}
	if noticeJSON != "" {
		var n domain.StatusNotice
		if err := json.Unmarshal([]byte(noticeJSON), &n); err != nil {
			return nil, fmt.Errorf("decode notice: %w", err)
		}
		a.Notice = &n
	}
	return &a, nil
}

// CountInProgress returns the number of in-progress activities for a session.
func (r *ActivityRepo) CountInProgress(ctx context.Context, db *sql.DB, sessionID string) (int, error) {
	const q = `SELECT COUNT(*) FROM activities WHERE session_id = ? AND status = 'in-progress'`
	var n int
	if err := db.QueryRowContext(ctx, q, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count in-progress: %w", err)
	}
	return n, nil
}

// SubmitWrite persists a turn submission's payload and next turn owner.
// The write is conditional on the turn owner the submitter observed AND
// the state version the machine read: if either changed underneath,
// nothing is written and ErrTurnConflict is returned. This guard is the
// only thing standing between two near-simultaneous submissions and a
// corrupted payload; it must never be relaxed.
func (r *ActivityRepo) SubmitWrite(ctx context.Context, db execer, a domain.Activity, expectedTurn string) error {
	const q = `UPDATE activities SET
		turn = ?,
		payload_json = ?,
		notice_json = ?,
		state_version = state_version + 1,
		updated_at_unix = ?
	WHERE activity_id = ? AND turn = ? AND state_version = ? AND status = 'in-progress'`

	res, err := db.ExecContext(ctx, q,
		a.Turn,
		a.PayloadJSON,
		marshalNotice(a.Notice),
		a.UpdatedAtUnix,
		a.ID,
		expectedTurn,
		a.StateVersion,
	)
	if err != nil {
		return fmt.Errorf("submit write: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrTurnConflict
	}
	return nil
}

// Complete finalizes an activity: status, result, and final payload in one
// guarded write. The status precondition makes a replayed completion a
// no-op at the row level; callers treat zero rows as ErrTurnConflict and
// re-read to distinguish "already completed" from a lost race.
func (r *ActivityRepo) Complete(ctx context.Context, db execer, a domain.Activity, expectedTurn string) error {
	const q = `UPDATE activities SET
		status = 'completed',
		turn = ?,
		payload_json = ?,
		result_json = ?,
		notice_json = ?,
		state_version = state_version + 1,
		updated_at_unix = ?,
		completed_at_unix = ?
	WHERE activity_id = ? AND turn = ? AND state_version = ? AND status = 'in-progress'`

	res, err := db.ExecContext(ctx, q,
		a.Turn,
		a.PayloadJSON,
		marshalResult(a.Result),
		marshalNotice(a.Notice),
		a.UpdatedAtUnix,
		a.CompletedAtUnix,
		a.ID,
		expectedTurn,
		a.StateVersion,
	)
	if err != nil {
		return fmt.Errorf("complete activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrTurnConflict
	}
	return nil
}

func marshalStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func marshalResult(res *domain.Result) string {
	if res == nil {
		return ""
	}
	b, _ := json.Marshal(res)
	return string(b)
}

func marshalNotice(n *domain.StatusNotice) string {
	if n == nil {
		return ""
	}
	b, _ := json.Marshal(n)
	return string(b)
}
