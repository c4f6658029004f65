package activity

import (
	"encoding/json"

	"github.com/tandemlabs/tandem-engine/internal/domain"
)

const gratitudeScore = 22

var gratitudePrompts = []string{
	"Name one thing your partner did recently that meant a lot.",
	"What is one trait in your partner that made your day better?",
}

// gratitudeVariant trades exactly one appreciation note per participant.
type gratitudeVariant struct{}

func (gratitudeVariant) Type() domain.ActivityVariant { return domain.VariantGratitude }

func (gratitudeVariant) NewPayload(env Env) (any, error) {
	return domain.GratitudePayload{
		Prompt: pickPrompt(gratitudePrompts),
		Notes:  []domain.GratitudeNote{},
	}, nil
}

func (gratitudeVariant) Apply(payloadJSON string, sub domain.TurnSubmission, env Env) (Outcome, error) {
	var p domain.GratitudePayload
	if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
		return Outcome{}, domain.WrapEngineError(domain.ErrStoreQuery.Code, "decode gratitude payload", err)
	}

	if sub.Note == "" {
		return Outcome{}, domain.NewEngineError(domain.ErrInputEmpty.Code, "write a gratitude note first")
	}
	if !env.Testing() {
		for _, n := range p.Notes {
			if n.UserID == env.Submitter {
				return Outcome{}, domain.NewEngineError(domain.ErrAlreadySubmitted.Code, "you already submitted your gratitude note")
			}
		}
	}

	role := ""
	if env.Testing() {
		if len(p.Notes) == 0 {
			role = "(P1 Gratitude)"
		} else {
			role = "(P2 Gratitude)"
		}
	}
	p.Notes = append(p.Notes, domain.GratitudeNote{
		UserID: env.Submitter,
		Role:   role,
		Text:   sub.Note,
	})

	if len(p.Notes) >= 2 {
		detail, _ := json.Marshal(p)
		return Outcome{
			Payload:  p,
			NextTurn: env.Submitter,
			Done:     true,
			Result: &domain.Result{
				ScoreChange: gratitudeScore,
				Summary:     "Gratitude exchange complete. Connection boosted.",
				Detail:      detail,
			},
		}, nil
	}

	return Outcome{
		Payload:  p,
		NextTurn: env.alternate(),
		Notice:   turnNotice(env, role, "shared gratitude."),
	}, nil
}
