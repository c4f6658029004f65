package activity

import (
	"encoding/json"

	"github.com/tandemlabs/tandem-engine/internal/domain"
)

var storyPrompts = []string{
	"Once upon a time...",
	"The old house...",
}

// storyVariant builds a story one sentence per turn until each
// participant has taken maxTurns turns.
type storyVariant struct{}

func (storyVariant) Type() domain.ActivityVariant { return domain.VariantStory }

func (storyVariant) NewPayload(env Env) (any, error) {
	prompt := pickPrompt(storyPrompts)
	return domain.StoryPayload{
		Prompt:   prompt,
		Text:     prompt + "\n",
		MaxTurns: env.Config.StoryMaxTurns,
	}, nil
}

func (storyVariant) Apply(payloadJSON string, sub domain.TurnSubmission, env Env) (Outcome, error) {
	var p domain.StoryPayload
	if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
		return Outcome{}, domain.WrapEngineError(domain.ErrStoreQuery.Code, "decode story payload", err)
	}

	if sub.Sentence == "" {
		return Outcome{}, domain.NewEngineError(domain.ErrInputEmpty.Code, "add a sentence first")
	}

	p.Text += sub.Sentence + "\n"
	p.TurnCount++

	if p.TurnCount >= p.MaxTurns*2 {
		detail, _ := json.Marshal(struct {
			Prompt string `json:"prompt"`
			Story  string `json:"story"`
		}{Prompt: p.Prompt, Story: p.Text})
		return Outcome{
			Payload:  p,
			NextTurn: env.Submitter,
			Done:     true,
			Result: &domain.Result{
				ScoreChange: 20 + len(p.Text)/50,
				Summary:     "Our epic saga is complete! What a masterpiece!",
				Detail:      detail,
			},
		}, nil
	}

	return Outcome{
		Payload:  p,
		NextTurn: env.alternate(),
		Notice:   turnNotice(env, "", "added to the tale."),
	}, nil
}
