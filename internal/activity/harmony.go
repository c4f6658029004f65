package activity

import (
	"encoding/json"
	"time"

	"github.com/tandemlabs/tandem-engine/internal/domain"
)

var measuresPrompts = []string{
	"Rainy Day Groove",
	"Sunrise Serenity",
}

const (
	measuresTempo = 120
	measuresCount = 2
)

// measuresVariant layers short looped measures. The combined goal is
// layersPerUser for each of the two roles; in test mode the sole identity
// records every layer itself, so only the combined goal is enforced.
type measuresVariant struct{}

func (measuresVariant) Type() domain.ActivityVariant { return domain.VariantMeasures }

func (measuresVariant) NewPayload(env Env) (any, error) {
	return domain.MeasuresPayload{
		Prompt:         pickPrompt(measuresPrompts),
		Tempo:          measuresTempo,
		Measures:       measuresCount,
		SecondsPerLoop: 60.0 / measuresTempo * 4 * measuresCount,
		Layers:         []domain.AudioLayer{},
		LayersPerUser:  env.Config.LayersPerUser,
	}, nil
}

func (measuresVariant) Apply(payloadJSON string, sub domain.TurnSubmission, env Env) (Outcome, error) {
	var p domain.MeasuresPayload
	if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
		return Outcome{}, domain.WrapEngineError(domain.ErrStoreQuery.Code, "decode measures payload", err)
	}

	if sub.Clip == "" {
		return Outcome{}, domain.NewEngineError(domain.ErrInputEmpty.Code, "a recorded clip is required")
	}

	goal := p.LayersPerUser * 2
	if len(p.Layers) >= goal {
		return Outcome{}, domain.ErrActivityFinished
	}
	if !env.Testing() {
		mine := 0
		for _, l := range p.Layers {
			if l.UserID == env.Submitter {
				mine++
			}
		}
		if mine >= p.LayersPerUser {
			return Outcome{}, domain.NewEngineError(domain.ErrQuotaReached.Code, "you've added all your layers")
		}
	}

	p.Layers = append(p.Layers, domain.AudioLayer{
		UserID:   env.Submitter,
		Clip:     sub.Clip,
		LayerNum: len(p.Layers) + 1,
	})

	if len(p.Layers) >= goal {
		detail, _ := json.Marshal(p)
		return Outcome{
			Payload:  p,
			NextTurn: env.Submitter,
			Done:     true,
			Result: &domain.Result{
				ScoreChange: 25 + 3*len(p.Layers),
				Summary:     "Harmony complete! What a vibe!",
				Detail:      detail,
			},
		}, nil
	}

	return Outcome{
		Payload:  p,
		NextTurn: env.alternate(),
		Notice:   turnNotice(env, "", "added a layer."),
	}, nil
}

// songVariant records segments against a per-participant quota, both the
// quota and the combined total doubled for the sole identity in test
// mode. Turn alternates, but once one participant's quota is full the
// turn stays with the other until the total is reached.
type songVariant struct{}

func (songVariant) Type() domain.ActivityVariant { return domain.VariantSong }

func (songVariant) NewPayload(env Env) (any, error) {
	return domain.SongPayload{
		Parts:        []domain.AudioPart{},
		PartsPerUser: env.Config.SongPartsPerUser,
	}, nil
}

func (songVariant) Apply(payloadJSON string, sub domain.TurnSubmission, env Env) (Outcome, error) {
	var p domain.SongPayload
	if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
		return Outcome{}, domain.WrapEngineError(domain.ErrStoreQuery.Code, "decode song payload", err)
	}

	if sub.Clip == "" {
		return Outcome{}, domain.NewEngineError(domain.ErrInputEmpty.Code, "a recorded clip is required")
	}

	target := p.PartsPerUser * 2
	if len(p.Parts) >= target {
		return Outcome{}, domain.ErrActivityFinished
	}

	perUserCap := p.PartsPerUser
	if env.Testing() {
		perUserCap = p.PartsPerUser * 2
	}
	mine := 0
	for _, part := range p.Parts {
		if part.UserID == env.Submitter {
			mine++
		}
	}
	if mine >= perUserCap {
		return Outcome{}, domain.NewEngineError(domain.ErrQuotaReached.Code, "your tracks are done, waiting for your partner")
	}

	role := ""
	if env.Testing() {
		if len(p.Parts)%2 == 0 {
			role = "(P1 Test Part)"
		} else {
			role = "(P2 Test Part)"
		}
	}
	p.Parts = append(p.Parts, domain.AudioPart{
		UserID:         env.Submitter,
		Role:           role,
		Clip:           sub.Clip,
		RecordedAtUnix: time.Now().Unix(),
	})

	if len(p.Parts) >= target {
		detail, _ := json.Marshal(p)
		return Outcome{
			Payload:  p,
			NextTurn: env.Submitter,
			Done:     true,
			Result: &domain.Result{
				ScoreChange: 30 + 5*len(p.Parts),
				Summary:     "Song complete!",
				Detail:      detail,
			},
		}, nil
	}

	nextTurn := env.alternate()
	if !env.Testing() {
		a, b := env.Session.ParticipantA, env.Session.ParticipantB
		aCount, bCount := 0, 0
		for _, part := range p.Parts {
			switch part.UserID {
			case a:
				aCount++
			case b:
				bCount++
			}
		}
		if aCount >= p.PartsPerUser && bCount < p.PartsPerUser {
			nextTurn = b
		} else if bCount >= p.PartsPerUser && aCount < p.PartsPerUser {
			nextTurn = a
		}
	}

	return Outcome{
		Payload:  p,
		NextTurn: nextTurn,
		Notice:   turnNotice(env, role, "recorded a track."),
	}, nil
}
