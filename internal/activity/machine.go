package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/tandemlabs/tandem-engine/internal/domain"
	"github.com/tandemlabs/tandem-engine/internal/flow"
	"github.com/tandemlabs/tandem-engine/internal/store"
)

// maxBookkeepingRetries bounds the re-read/retry loop for session
// bookkeeping after a completion loses a version race. The activity-side
// turn guard is never retried; a rejected submission surfaces to the
// caller.
const maxBookkeepingRetries = 3

// Machine drives the generic turn protocol: it starts activities, applies
// turn submissions through the variant arms, and finalizes completions.
type Machine struct {
	DB         *sql.DB
	Sessions   *store.SessionRepo
	Activities *store.ActivityRepo
	Journal    *store.JournalRepo
	Config     Config
}

// NewMachine creates a machine with all repo dependencies.
func NewMachine(db *sql.DB, cfg Config) *Machine {
	return &Machine{
		DB:         db,
		Sessions:   &store.SessionRepo{},
		Activities: &store.ActivityRepo{},
		Journal:    &store.JournalRepo{},
		Config:     cfg,
	}
}

// Start creates a new activity of the given variant and binds it into the
// session's single activity slot.
func (m *Machine) Start(ctx context.Context, sessionID, userID string, v domain.ActivityVariant) (*domain.Activity, error) {
	sess, err := m.Sessions.GetByID(ctx, m.DB, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.HasParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}
	if sess.CurrentActivityID != "" {
		return nil, domain.ErrActivityInProgress
	}
	// The session snapshot may lag behind the activity collection; check
	// the collection itself so a stale snapshot cannot start a second one.
	if n, err := m.Activities.CountInProgress(ctx, m.DB, sessionID); err != nil {
		return nil, err
	} else if n > 0 {
		return nil, domain.ErrActivityInProgress
	}
	// A reserved slot counts as occupied, so slot occupancy alone is not
	// enough; the partner must actually have joined.
	if !sess.Testing() && sess.Status != domain.StatusActive {
		return nil, domain.ErrPartnerMissing
	}

	arm, err := variantFor(v)
	if err != nil {
		return nil, err
	}
	env := Env{Session: sess, Submitter: userID, Config: m.Config}
	payload, err := arm.NewPayload(env)
	if err != nil {
		return nil, err
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode initial payload: %w", err)
	}

	turn := sess.ParticipantA
	if !sess.Testing() && rand.Intn(2) == 1 {
		turn = sess.ParticipantB
	}

	now := time.Now().Unix()
	a := domain.Activity{
		ID:            store.NewID(),
		SessionID:     sessionID,
		Variant:       v,
		Status:        domain.ActivityInProgress,
		Turn:          turn,
		Participants:  sess.Participants(),
		PayloadJSON:   string(payloadJSON),
		StateVersion:  1,
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := m.Activities.Create(ctx, tx, a); err != nil {
		return nil, err
	}
	next := *sess
	next.CurrentActivityID = a.ID
	next.UpdatedAtUnix = now
	if err := m.Sessions.UpdateState(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit start: %w", err)
	}
	return &a, nil
}

// SubmitTurn applies one participant contribution to an in-progress
// activity. The persisted write is conditional on the turn owner and
// state version observed here; a lost race returns ErrTurnConflict with
// nothing mutated, and the caller should re-read before deciding whether
// to retry.
func (m *Machine) SubmitTurn(ctx context.Context, activityID, userID string, sub domain.TurnSubmission) (*domain.Activity, error) {
	a, err := m.Activities.GetByID(ctx, m.DB, activityID)
	if err != nil {
		return nil, err
	}
	if a.Status == domain.ActivityCompleted {
		return nil, domain.ErrActivityFinished
	}
	sess, err := m.Sessions.GetByID(ctx, m.DB, a.SessionID)
	if err != nil {
		return nil, err
	}
	if !sess.HasParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}
	if !sess.Testing() && a.Turn != userID {
		return nil, domain.ErrNotYourTurn
	}

	arm, err := variantFor(a.Variant)
	if err != nil {
		return nil, err
	}
	env := Env{Session: sess, Submitter: userID, Config: m.Config}
	out, err := arm.Apply(a.PayloadJSON, sub, env)
	if err != nil {
		return nil, err
	}
	payloadJSON, err := json.Marshal(out.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	now := time.Now().Unix()
	updated := *a
	updated.PayloadJSON = string(payloadJSON)
	updated.Turn = out.NextTurn
	updated.Notice = out.Notice
	updated.UpdatedAtUnix = now

	if out.Done {
		updated.Status = domain.ActivityCompleted
		updated.Result = out.Result
		updated.CompletedAtUnix = now
		if updated.Notice == nil {
			updated.Notice = &domain.StatusNotice{Kind: domain.NoticeComplete, Text: out.Result.Summary}
		}
		if err := m.finalize(ctx, a, updated); err != nil {
			return nil, err
		}
		// An equivalent completion may have won the guard instead; return
		// the stored row rather than a locally assembled snapshot.
		return m.Activities.GetByID(ctx, m.DB, a.ID)
	}

	if err := m.Activities.SubmitWrite(ctx, m.DB, updated, a.Turn); err != nil {
		return nil, err
	}
	updated.StateVersion++
	return &updated, nil
}

// End finalizes an activity with the given result. Ending an activity
// that is already completed is a silent no-op: no score, no journal
// entry, no cursor movement.
func (m *Machine) End(ctx context.Context, activityID string, result domain.Result) error {
	a, err := m.Activities.GetByID(ctx, m.DB, activityID)
	if err != nil {
		return err
	}
	if a.Status == domain.ActivityCompleted {
		return nil
	}

	now := time.Now().Unix()
	updated := *a
	updated.Status = domain.ActivityCompleted
	updated.Result = &result
	updated.Notice = &domain.StatusNotice{Kind: domain.NoticeComplete, Text: result.Summary}
	updated.UpdatedAtUnix = now
	updated.CompletedAtUnix = now
	return m.finalize(ctx, a, updated)
}

// RestartExperience resets the curriculum cursor to the beginning. Prior
// journal entries are untouched; only progression state is cleared.
func (m *Machine) RestartExperience(ctx context.Context, sessionID string) (*domain.Session, error) {
	for attempt := 0; attempt < maxBookkeepingRetries; attempt++ {
		sess, err := m.Sessions.GetByID(ctx, m.DB, sessionID)
		if err != nil {
			return nil, err
		}
		next := *sess
		next.ExperienceStep = 0
		next.ExperienceCompleted = false
		next.CompletedVariants = nil
		next.CurrentActivityID = ""
		next.UpdatedAtUnix = time.Now().Unix()
		if err := m.Sessions.UpdateState(ctx, m.DB, next); err != nil {
			if err == domain.ErrVersionConflict {
				continue
			}
			return nil, err
		}
		return m.Sessions.GetByID(ctx, m.DB, sessionID)
	}
	return nil, domain.ErrVersionConflict
}

// finalize performs the completion bookkeeping in one transaction: the
// guarded activity completion, the idempotent journal append, and the
// session updates (score, cursor, completed types, activity slot). A
// session version race rolls everything back and retries against fresh
// state; a replayed completion is detected and dropped silently.
func (m *Machine) finalize(ctx context.Context, prev *domain.Activity, updated domain.Activity) error {
	for attempt := 0; attempt < maxBookkeepingRetries; attempt++ {
		sess, err := m.Sessions.GetByID(ctx, m.DB, prev.SessionID)
		if err != nil {
			return err
		}

		tx, err := m.DB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}

		if err := m.Activities.Complete(ctx, tx, updated, prev.Turn); err != nil {
			tx.Rollback()
			if err == domain.ErrTurnConflict {
				cur, gerr := m.Activities.GetByID(ctx, m.DB, prev.ID)
				if gerr == nil && cur.Status == domain.ActivityCompleted {
					return nil
				}
			}
			return err
		}

		resultJSON, err := json.Marshal(updated.Result)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode result: %w", err)
		}
		entry := domain.JournalEntry{
			ID:             store.NewID(),
			SessionID:      prev.SessionID,
			ActivityID:     prev.ID,
			Variant:        prev.Variant,
			ActivityName:   flow.DisplayName(prev.Variant),
			ResultJSON:     string(resultJSON),
			ParticipantIDs: sess.Participants(),
			CreatedAtUnix:  updated.CompletedAtUnix,
		}
		if err := m.Journal.Append(ctx, tx, entry); err != nil {
			tx.Rollback()
			return err
		}

		next := *sess
		if next.CurrentActivityID == prev.ID {
			next.CurrentActivityID = ""
		}
		if change := updated.Result.ScoreChange; change > 0 {
			next.Score += change
		}
		next.ExperienceStep = flow.AdvanceOnComplete(next.ExperienceStep, prev.Variant)
		next.ExperienceCompleted = flow.Complete(next.ExperienceStep)
		if !next.HasCompleted(prev.Variant) {
			next.CompletedVariants = append(next.CompletedVariants, prev.Variant)
		}
		next.UpdatedAtUnix = updated.UpdatedAtUnix
		if err := m.Sessions.UpdateState(ctx, tx, next); err != nil {
			tx.Rollback()
			if err == domain.ErrVersionConflict {
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit completion: %w", err)
		}
		return nil
	}
	return domain.ErrVersionConflict
}
