package activity

import (
	"encoding/json"
	"math/rand"

	"github.com/tandemlabs/tandem-engine/internal/domain"
)

// scene is one scripted scene template.
type scene struct {
	prompt string
	script []domain.ScriptLine
}

var scenes = []scene{
	{
		prompt: "Pirate & Mermaid",
		script: []domain.ScriptLine{
			{Character: "Captain", Line: "Arrr, treasure!"},
			{Character: "Mermaid", Line: "Never!"},
		},
	},
	{
		prompt: "Squirrels & Acorn",
		script: []domain.ScriptLine{
			{Character: "Squeaky", Line: "My acorn!"},
			{Character: "Nutsy", Line: "No, mine!"},
		},
	},
}

var voiceDirections = []string{
	"with a deep voice", "whispering", "excitedly", "very tired",
	"like a robot", "singing it", "very fast", "super slowly",
	"like you're on stage",
}

// scenesVariant records one clip per script line in line order, turn
// flipping to the partner after each delivered line.
type scenesVariant struct{}

func (scenesVariant) Type() domain.ActivityVariant { return domain.VariantScenes }

func (scenesVariant) NewPayload(env Env) (any, error) {
	sc := scenes[rand.Intn(len(scenes))]
	script := make([]domain.ScriptLine, len(sc.script))
	copy(script, sc.script)
	return domain.ScenesPayload{
		ScenePrompt: sc.prompt,
		Script:      script,
	}, nil
}

func (scenesVariant) Apply(payloadJSON string, sub domain.TurnSubmission, env Env) (Outcome, error) {
	var p domain.ScenesPayload
	if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
		return Outcome{}, domain.WrapEngineError(domain.ErrStoreQuery.Code, "decode scenes payload", err)
	}

	if sub.Clip == "" {
		return Outcome{}, domain.NewEngineError(domain.ErrInputEmpty.Code, "a recorded clip is required")
	}
	if p.CurrentLine >= len(p.Script) {
		return Outcome{}, domain.ErrActivityFinished
	}

	p.Script[p.CurrentLine].RecordedClip = sub.Clip
	p.Script[p.CurrentLine].UserID = env.Submitter
	next := p.CurrentLine + 1

	if next >= len(p.Script) {
		detail, _ := json.Marshal(p)
		return Outcome{
			Payload:  p,
			NextTurn: env.Submitter,
			Done:     true,
			Result: &domain.Result{
				ScoreChange: 15 + 2*len(p.Script),
				Summary:     "Scene complete! Bravo!",
				Detail:      detail,
			},
		}, nil
	}

	p.Script[next].VoiceDirection = voiceDirections[rand.Intn(len(voiceDirections))]
	p.CurrentLine = next
	nextTurn := env.alternate()
	return Outcome{
		Payload:  p,
		NextTurn: nextTurn,
		Notice: &domain.StatusNotice{
			Kind:      domain.NoticeTurn,
			ForUserID: nextTurn,
			Text: env.Session.DisplayNameOf(env.Submitter, "") + " delivered their line! Next up: " +
				env.Session.DisplayNameOf(nextTurn, "") + " as " + p.Script[next].Character + ".",
		},
	}, nil
}
