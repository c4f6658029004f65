// Package activity implements the generic per-activity turn protocol and
// the seven variant arms that plug into it.
//
// Dispatch over variants is a closed switch: each arm owns its payload
// schema, completion predicate, and turn-advance rule. Adding a variant
// means adding an arm, never registering into a mutable table.
package activity

import (
	"math/rand"

	"github.com/tandemlabs/tandem-engine/internal/domain"
)

// Config carries the tunable variant parameters.
type Config struct {
	StoryMaxTurns    int
	LayersPerUser    int
	SongPartsPerUser int
}

// DefaultConfig matches the shipped curriculum.
func DefaultConfig() Config {
	return Config{
		StoryMaxTurns:    5,
		LayersPerUser:    2,
		SongPartsPerUser: 2,
	}
}

// Env is the session context a variant arm evaluates a turn against.
type Env struct {
	Session   *domain.Session
	Submitter string
	Config    Config
}

// Testing reports whether turn-ownership checks are bypassed.
func (e Env) Testing() bool {
	return e.Session.Testing()
}

// alternate returns the next turn owner after the submitter's turn. In
// test mode the sole identity keeps the turn and plays both roles in
// strict succession.
func (e Env) alternate() string {
	if e.Testing() {
		return e.Submitter
	}
	return e.Session.PartnerOf(e.Submitter)
}

// Outcome is a variant arm's verdict on one turn submission.
type Outcome struct {
	Payload  any
	NextTurn string
	Notice   *domain.StatusNotice
	Done     bool
	Result   *domain.Result
}

// Variant is one closed arm of the activity union.
type Variant interface {
	Type() domain.ActivityVariant
	// NewPayload builds the variant's initial payload for a fresh activity.
	NewPayload(env Env) (any, error)
	// Apply evaluates one turn submission against the stored payload. It
	// must not mutate anything on error; the returned outcome carries the
	// updated payload, the next turn owner, and the completion verdict.
	Apply(payloadJSON string, sub domain.TurnSubmission, env Env) (Outcome, error)
}

// variantFor dispatches to the arm implementing the given variant type.
func variantFor(v domain.ActivityVariant) (Variant, error) {
	switch v {
	case domain.VariantCheckIn:
		return checkInVariant{}, nil
	case domain.VariantGratitude:
		return gratitudeVariant{}, nil
	case domain.VariantStory:
		return storyVariant{}, nil
	case domain.VariantCoinToss:
		return coinTossVariant{}, nil
	case domain.VariantScenes:
		return scenesVariant{}, nil
	case domain.VariantMeasures:
		return measuresVariant{}, nil
	case domain.VariantSong:
		return songVariant{}, nil
	}
	return nil, domain.ErrUnknownVariant
}

func pickPrompt(prompts []string) string {
	return prompts[rand.Intn(len(prompts))]
}

func turnNotice(env Env, actedRole, acted string) *domain.StatusNotice {
	next := env.alternate()
	return &domain.StatusNotice{
		Kind:      domain.NoticeTurn,
		ForUserID: next,
		Text:      env.Session.DisplayNameOf(env.Submitter, actedRole) + " " + acted + " " + env.Session.DisplayNameOf(next, "") + " is up next.",
	}
}
