// Package domain defines the core types for the Tandem engine.
package domain

import "encoding/json"

// TestPartnerSentinel is the reserved partner id meaning "pair me with
// myself in test mode". A session created with it has both slots bound to
// the initiating participant and every turn-ownership check bypassed.
const TestPartnerSentinel = "0"

// SessionStatus represents the pairing lifecycle of a session.
type SessionStatus string

const (
	StatusPendingPartner SessionStatus = "pending_partner_join"
	StatusActive         SessionStatus = "active"
	StatusActiveTesting  SessionStatus = "active_testing"
)

// Session is the shared document pairing two participants. It owns the
// cumulative score, the curriculum cursor, and the single activity slot.
type Session struct {
	ID                  string            `json:"id"`
	ParticipantA        string            `json:"participant_a"`
	ParticipantB        string            `json:"participant_b"`
	DisplayNameA        string            `json:"display_name_a"`
	DisplayNameB        string            `json:"display_name_b"`
	Status              SessionStatus     `json:"status"`
	Score               int               `json:"score"`
	CurrentActivityID   string            `json:"current_activity_id,omitempty"`
	ExperienceStep      int               `json:"experience_step"`
	ExperienceCompleted bool              `json:"experience_completed"`
	CompletedVariants   []ActivityVariant `json:"completed_variants"`
	StateVersion        int64             `json:"state_version"`
	CreatedAtUnix       int64             `json:"created_at_unix"`
	UpdatedAtUnix       int64             `json:"updated_at_unix"`
}

// Testing reports whether the session is in single-identity test mode.
func (s *Session) Testing() bool {
	return s.Status == StatusActiveTesting
}

// HasParticipant reports whether the id occupies either slot.
func (s *Session) HasParticipant(id string) bool {
	return id != "" && (s.ParticipantA == id || s.ParticipantB == id)
}

// PartnerOf returns the other participant's id. In test mode both slots
// hold the same identity, so the "partner" is the caller itself.
func (s *Session) PartnerOf(id string) string {
	if id == s.ParticipantA {
		return s.ParticipantB
	}
	return s.ParticipantA
}

// Participants returns the occupied slots in order, empty slots omitted.
func (s *Session) Participants() []string {
	var ids []string
	if s.ParticipantA != "" {
		ids = append(ids, s.ParticipantA)
	}
	if s.ParticipantB != "" {
		ids = append(ids, s.ParticipantB)
	}
	return ids
}

// BothSlotsFilled reports whether neither participant slot is empty.
func (s *Session) BothSlotsFilled() bool {
	return s.ParticipantA != "" && s.ParticipantB != ""
}

// HasCompleted reports whether the variant type has already been recorded
// as completed during the current run of the experience.
func (s *Session) HasCompleted(v ActivityVariant) bool {
	for _, c := range s.CompletedVariants {
		if c == v {
			return true
		}
	}
	return false
}

// DisplayNameOf resolves a participant id to its display name. In test
// mode the sole identity occupies both slots; role disambiguates which
// synthetic label to show, defaulting to slot A's.
func (s *Session) DisplayNameOf(id, role string) string {
	if s.Testing() && id == s.ParticipantA {
		if role != "" {
			return role
		}
		return s.DisplayNameA
	}
	switch id {
	case s.ParticipantA:
		if s.DisplayNameA != "" {
			return s.DisplayNameA
		}
		return "P1"
	case s.ParticipantB:
		if s.DisplayNameB != "" {
			return s.DisplayNameB
		}
		return "P2"
	}
	return "Partner"
}

// ActivityVariant identifies one of the seven mini-activity types.
type ActivityVariant string

const (
	VariantCoinToss  ActivityVariant = "coin-toss"
	VariantCheckIn   ActivityVariant = "check-in"
	VariantStory     ActivityVariant = "collaborative-story"
	VariantGratitude ActivityVariant = "gratitude-exchange"
	VariantScenes    ActivityVariant = "scripted-scenes"
	VariantMeasures  ActivityVariant = "duet-harmonies-measures"
	VariantSong      ActivityVariant = "song-creation"
)

// ActivityStatus is the lifecycle state of one activity document.
type ActivityStatus string

const (
	ActivityInProgress ActivityStatus = "in-progress"
	ActivityCompleted  ActivityStatus = "completed"
)

// Activity is one instance of a mini-activity with its own turn protocol.
// Exactly one activity per session may be in progress at a time.
type Activity struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	Variant         ActivityVariant `json:"variant"`
	Status          ActivityStatus  `json:"status"`
	Turn            string          `json:"turn"`
	Participants    []string        `json:"participants"`
	PayloadJSON     string          `json:"payload_json"`
	Result          *Result         `json:"result,omitempty"`
	Notice          *StatusNotice   `json:"notice,omitempty"`
	StateVersion    int64           `json:"state_version"`
	CreatedAtUnix   int64           `json:"created_at_unix"`
	UpdatedAtUnix   int64           `json:"updated_at_unix"`
	CompletedAtUnix int64           `json:"completed_at_unix,omitempty"`
}

// Result is the immutable outcome of a completed activity.
type Result struct {
	ScoreChange int             `json:"score_change"`
	Summary     string          `json:"summary"`
	Detail      json.RawMessage `json:"detail,omitempty"`
}

// NoticeKind classifies a status notice.
type NoticeKind string

const (
	NoticeTurn     NoticeKind = "turn"
	NoticeComplete NoticeKind = "complete"
	NoticeInfo     NoticeKind = "info"
)

// StatusNotice is display text produced by the turn protocol. It is kept
// apart from the variant payload so presentation never leaks into
// protocol state.
type StatusNotice struct {
	Kind      NoticeKind `json:"kind"`
	ForUserID string     `json:"for_user_id,omitempty"`
	Text      string     `json:"text"`
}

// EncodedClip is an opaque reference to an encoded audio segment. Capture
// and encoding happen on the client; the engine never inspects the bytes.
type EncodedClip string

// TurnSubmission is one participant contribution. Variant arms read only
// the fields they require.
type TurnSubmission struct {
	Mood     int         `json:"mood,omitempty"`
	Note     string      `json:"note,omitempty"`
	Sentence string      `json:"sentence,omitempty"`
	Action   string      `json:"action,omitempty"`
	Clip     EncodedClip `json:"clip,omitempty"`
}

// JournalEntry is the append-only archival record of one completed
// activity. Entries are never mutated or deleted.
type JournalEntry struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"session_id"`
	ActivityID     string          `json:"activity_id"`
	Variant        ActivityVariant `json:"variant"`
	ActivityName   string          `json:"activity_name"`
	ResultJSON     string          `json:"result_json"`
	ParticipantIDs []string        `json:"participant_ids"`
	CreatedAtUnix  int64           `json:"created_at_unix"`
}
