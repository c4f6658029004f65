// Package flow defines the fixed experience curriculum and the cursor
// rules that sequence a session through it.
package flow

import "github.com/tandemlabs/tandem-engine/internal/domain"

// Step is one entry of the experience flow.
type Step struct {
	Variant domain.ActivityVariant `json:"variant"`
	Phase   string                 `json:"phase"`
	Summary string                 `json:"summary"`
}

// Steps is the ordered curriculum every session progresses through.
// The order is fixed; sessions carry only a cursor into it.
var Steps = []Step{
	{Variant: domain.VariantCoinToss, Phase: "Warm-up", Summary: "Quick icebreaker to set the tone."},
	{Variant: domain.VariantCheckIn, Phase: "Emotional Sync", Summary: "Share your current mood and energy."},
	{Variant: domain.VariantStory, Phase: "Story Spark", Summary: "Build a short story one line at a time."},
	{Variant: domain.VariantGratitude, Phase: "Appreciation", Summary: "Trade one meaningful gratitude note."},
	{Variant: domain.VariantScenes, Phase: "Playful Acting", Summary: "Perform a scene together."},
	{Variant: domain.VariantMeasures, Phase: "Music Layers", Summary: "Create loop layers into a shared groove."},
	{Variant: domain.VariantSong, Phase: "Final Duet", Summary: "Record the final collaborative performance."},
}

// displayNames maps each variant to its catalog name, used for journal
// entries and flow listings.
var displayNames = map[domain.ActivityVariant]string{
	domain.VariantCoinToss:  "Coin Toss Challenge",
	domain.VariantCheckIn:   "Relationship Check-In",
	domain.VariantStory:     "Our Story Unfolds",
	domain.VariantGratitude: "Gratitude Exchange",
	domain.VariantSong:      "Duet Harmonies (Original)",
	domain.VariantMeasures:  "Duet Harmonies (Measures)",
	domain.VariantScenes:    "Scripted Scenes",
}

// DisplayName returns the catalog name for a variant, falling back to the
// variant id itself.
func DisplayName(v domain.ActivityVariant) string {
	if name, ok := displayNames[v]; ok {
		return name
	}
	return string(v)
}

// ClampStep normalizes a stored cursor to [0, len(Steps)].
func ClampStep(step int) int {
	if step < 0 {
		return 0
	}
	if step > len(Steps) {
		return len(Steps)
	}
	return step
}

// Complete reports whether the cursor has walked the whole curriculum.
func Complete(step int) bool {
	return ClampStep(step) >= len(Steps)
}

// NextStep returns the flow entry the session is expected to play next,
// or nil once the curriculum is complete.
func NextStep(step int) *Step {
	step = ClampStep(step)
	if step >= len(Steps) {
		return nil
	}
	s := Steps[step]
	return &s
}

// AdvanceOnComplete returns the cursor after an activity of the given
// variant completes. The cursor moves only when the completed variant
// matches the expected step; completions of any other type, possible
// after a restart race or from a stale client, leave progression
// untouched so the curriculum stays strictly ordered.
func AdvanceOnComplete(step int, completed domain.ActivityVariant) int {
	step = ClampStep(step)
	if step < len(Steps) && Steps[step].Variant == completed {
		return step + 1
	}
	return step
}
