package activity

import (
	"encoding/json"
	"math/rand"

	"github.com/tandemlabs/tandem-engine/internal/domain"
)

const coinTossScore = 10

// Turn actions understood by the coin toss arm.
const (
	ActionToss     = "toss"
	ActionContinue = "continue"
)

// coinTossVariant resolves a single randomized outcome, then waits for an
// explicit continue before completing. The tosser keeps the turn for both
// steps.
type coinTossVariant struct{}

func (coinTossVariant) Type() domain.ActivityVariant { return domain.VariantCoinToss }

func (coinTossVariant) NewPayload(env Env) (any, error) {
	sides := []string{domain.CoinHeads, domain.CoinTails}
	if rand.Intn(2) == 1 {
		sides[0], sides[1] = sides[1], sides[0]
	}
	assignments := map[string]string{env.Session.ParticipantA: sides[0]}
	if !env.Testing() {
		assignments[env.Session.ParticipantB] = sides[1]
	}
	return domain.CoinTossPayload{Assignments: assignments}, nil
}

func (coinTossVariant) Apply(payloadJSON string, sub domain.TurnSubmission, env Env) (Outcome, error) {
	var p domain.CoinTossPayload
	if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
		return Outcome{}, domain.WrapEngineError(domain.ErrStoreQuery.Code, "decode coin toss payload", err)
	}

	switch sub.Action {
	case ActionToss:
		if p.Outcome != "" {
			return Outcome{}, domain.NewEngineError(domain.ErrAlreadySubmitted.Code, "coin already tossed")
		}
		p.Outcome = domain.CoinHeads
		if rand.Intn(2) == 1 {
			p.Outcome = domain.CoinTails
		}
		if env.Testing() {
			p.WinnerID = env.Submitter
		} else {
			for uid, side := range p.Assignments {
				if side == p.Outcome {
					p.WinnerID = uid
				}
			}
		}
		p.AwaitingAck = true
		return Outcome{
			Payload:  p,
			NextTurn: env.Submitter,
			Notice: &domain.StatusNotice{
				Kind: domain.NoticeInfo,
				Text: "Landed on " + p.Outcome + "! " + env.Session.DisplayNameOf(p.WinnerID, "") + " won!",
			},
		}, nil

	case ActionContinue:
		if p.Outcome == "" {
			return Outcome{}, domain.ErrTossUnresolved
		}
		p.AwaitingAck = false
		detail, _ := json.Marshal(struct {
			Outcome  string `json:"outcome"`
			WinnerID string `json:"winner_id"`
		}{Outcome: p.Outcome, WinnerID: p.WinnerID})
		return Outcome{
			Payload:  p,
			NextTurn: env.Submitter,
			Done:     true,
			Result: &domain.Result{
				ScoreChange: coinTossScore,
				Summary:     "Landed on " + p.Outcome + "!",
				Detail:      detail,
			},
		}, nil
	}

	return Outcome{}, domain.NewEngineError(domain.ErrUnknownAction.Code, "coin toss accepts actions 'toss' and 'continue'")
}
