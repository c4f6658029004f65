package activity

import (
	"encoding/json"

	"github.com/tandemlabs/tandem-engine/internal/domain"
)

const checkInScore = 18

var checkInPrompts = []string{
	"How are you arriving to this moment together?",
	"What emotional weather are you feeling right now?",
}

// checkInVariant collects one mood+note entry per participant and
// completes once both entries are in.
type checkInVariant struct{}

func (checkInVariant) Type() domain.ActivityVariant { return domain.VariantCheckIn }

func (checkInVariant) NewPayload(env Env) (any, error) {
	return domain.CheckInPayload{
		Prompt:  pickPrompt(checkInPrompts),
		Entries: []domain.CheckInEntry{},
	}, nil
}

func (checkInVariant) Apply(payloadJSON string, sub domain.TurnSubmission, env Env) (Outcome, error) {
	var p domain.CheckInPayload
	if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
		return Outcome{}, domain.WrapEngineError(domain.ErrStoreQuery.Code, "decode check-in payload", err)
	}

	if sub.Note == "" {
		return Outcome{}, domain.NewEngineError(domain.ErrInputEmpty.Code, "share a quick note with your mood")
	}
	if sub.Mood < 1 || sub.Mood > 5 {
		return Outcome{}, domain.NewEngineError(domain.ErrInputEmpty.Code, "mood must be between 1 and 5")
	}
	if !env.Testing() {
		for _, e := range p.Entries {
			if e.UserID == env.Submitter {
				return Outcome{}, domain.NewEngineError(domain.ErrAlreadySubmitted.Code, "you already submitted your check-in")
			}
		}
	}

	role := ""
	if env.Testing() {
		if len(p.Entries) == 0 {
			role = "(P1 Check-in)"
		} else {
			role = "(P2 Check-in)"
		}
	}
	p.Entries = append(p.Entries, domain.CheckInEntry{
		UserID: env.Submitter,
		Role:   role,
		Mood:   sub.Mood,
		Note:   sub.Note,
	})

	if len(p.Entries) >= 2 {
		detail, _ := json.Marshal(p)
		return Outcome{
			Payload:  p,
			NextTurn: env.Submitter,
			Done:     true,
			Result: &domain.Result{
				ScoreChange: checkInScore,
				Summary:     "Check-in complete! Great emotional sync.",
				Detail:      detail,
			},
		}, nil
	}

	return Outcome{
		Payload:  p,
		NextTurn: env.alternate(),
		Notice:   turnNotice(env, role, "checked in."),
	}, nil
}
