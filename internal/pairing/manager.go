// Package pairing manages the session lifecycle: creating a pairing,
// joining the open slot, and leaving.
package pairing

import (
	"context"
	"database/sql"
	"time"

	"github.com/tandemlabs/tandem-engine/internal/domain"
	"github.com/tandemlabs/tandem-engine/internal/store"
)

// ReservedPartnerName is the placeholder display name a reserved slot
// holds until the invited partner joins and provides their own.
const ReservedPartnerName = "Partner 2 (Invited)"

// Manager owns the pairing lifecycle over the session store.
type Manager struct {
	DB       *sql.DB
	Sessions *store.SessionRepo
}

// NewManager creates a pairing manager.
func NewManager(db *sql.DB) *Manager {
	return &Manager{DB: db, Sessions: &store.SessionRepo{}}
}

// Create starts a new session for the initiator. Passing the reserved
// partner id "0" creates a single-identity test session with both slots
// bound to the initiator and the status marked active_testing. Any other
// partner id is written into slot B immediately with a placeholder
// display name: the slot is reserved, nobody else can take it, and the
// partner cannot be invited into a second session.
func (m *Manager) Create(ctx context.Context, initiatorID, displayName, partnerID string) (*domain.Session, error) {
	if initiatorID == "" {
		return nil, domain.NewEngineError(domain.ErrInputEmpty.Code, "initiator id is empty")
	}
	if partnerID == "" {
		return nil, domain.ErrPartnerIDEmpty
	}
	if partnerID == initiatorID {
		return nil, domain.ErrSelfPairing
	}

	if _, err := m.Sessions.FindByParticipant(ctx, m.DB, initiatorID); err == nil {
		return nil, domain.ErrAlreadyInSession
	} else if err != domain.ErrSessionNotFound {
		return nil, err
	}

	now := time.Now().Unix()
	s := domain.Session{
		ID:                store.NewID(),
		ParticipantA:      initiatorID,
		DisplayNameA:      displayName,
		Status:            domain.StatusPendingPartner,
		CompletedVariants: []domain.ActivityVariant{},
		StateVersion:      1,
		CreatedAtUnix:     now,
		UpdatedAtUnix:     now,
	}
	if partnerID == domain.TestPartnerSentinel {
		s.ParticipantB = initiatorID
		s.DisplayNameA = displayName + " (P1 Test)"
		s.DisplayNameB = displayName + " (P2 Test)"
		s.Status = domain.StatusActiveTesting
	} else {
		if _, err := m.Sessions.FindByParticipant(ctx, m.DB, partnerID); err == nil {
			return nil, domain.ErrPartnerAlreadyPaired
		} else if err != domain.ErrSessionNotFound {
			return nil, err
		}
		s.ParticipantB = partnerID
		s.DisplayNameB = ReservedPartnerName
	}

	if err := m.Sessions.Create(ctx, m.DB, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Join fills the caller's slot in a session. The reserved partner claims
// their slot by joining, which replaces the placeholder display name and
// activates the session; anyone else may only take a genuinely empty
// slot. Joining a session the caller already occupies returns the
// session unchanged.
func (m *Manager) Join(ctx context.Context, sessionID, userID, displayName string) (*domain.Session, error) {
	if userID == "" {
		return nil, domain.NewEngineError(domain.ErrInputEmpty.Code, "user id is empty")
	}
	sess, err := m.Sessions.GetByID(ctx, m.DB, sessionID)
	if err != nil {
		return nil, err
	}

	next := *sess
	switch {
	case sess.HasParticipant(userID):
		if sess.Status == domain.StatusPendingPartner &&
			userID == sess.ParticipantB && sess.DisplayNameB == ReservedPartnerName {
			next.DisplayNameB = displayName
		} else {
			return sess, nil
		}
	case next.ParticipantA == "":
		next.ParticipantA = userID
		next.DisplayNameA = displayName
	case next.ParticipantB == "":
		next.ParticipantB = userID
		next.DisplayNameB = displayName
	default:
		return nil, domain.ErrSessionFull
	}

	if next.BothSlotsFilled() {
		next.Status = domain.StatusActive
	}
	next.UpdatedAtUnix = time.Now().Unix()
	if err := m.Sessions.UpdateState(ctx, m.DB, next); err != nil {
		return nil, err
	}
	return m.Sessions.GetByID(ctx, m.DB, sessionID)
}

// Leave removes the caller from the session. A test session is deleted
// outright. On a pending session, a reserved partner who never joined
// declines by leaving, which clears the reservation; the initiator
// leaving deletes the session. On an active session the caller's slot is
// cleared, the session returns to pending_partner_join, and any
// in-progress activity slot is cleared with it.
func (m *Manager) Leave(ctx context.Context, sessionID, userID string) error {
	sess, err := m.Sessions.GetByID(ctx, m.DB, sessionID)
	if err != nil {
		return err
	}
	if !sess.HasParticipant(userID) {
		return domain.ErrNotParticipant
	}

	if sess.Testing() {
		return m.Sessions.Delete(ctx, m.DB, sessionID)
	}

	if sess.Status == domain.StatusPendingPartner {
		if userID == sess.ParticipantB && sess.DisplayNameB == ReservedPartnerName {
			next := *sess
			next.ParticipantB = ""
			next.DisplayNameB = ""
			next.UpdatedAtUnix = time.Now().Unix()
			return m.Sessions.UpdateState(ctx, m.DB, next)
		}
		return m.Sessions.Delete(ctx, m.DB, sessionID)
	}

	next := *sess
	if next.ParticipantA == userID {
		next.ParticipantA = ""
		next.DisplayNameA = ""
	} else {
		next.ParticipantB = ""
		next.DisplayNameB = ""
	}
	next.Status = domain.StatusPendingPartner
	next.CurrentActivityID = ""
	next.UpdatedAtUnix = time.Now().Unix()
	return m.Sessions.UpdateState(ctx, m.DB, next)
}

// Get returns a session by id.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.Sessions.GetByID(ctx, m.DB, sessionID)
}

// FindByParticipant returns the session the participant occupies, or
// ErrSessionNotFound.
func (m *Manager) FindByParticipant(ctx context.Context, userID string) (*domain.Session, error) {
	return m.Sessions.FindByParticipant(ctx, m.DB, userID)
}
