package domain

// Variant payload schemas. Each variant owns exactly one payload shape;
// the payload is the only field set a turn submission may mutate.

// CheckInEntry is one participant's mood report.
type CheckInEntry struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	Mood   int    `json:"mood"`
	Note   string `json:"note"`
}

// CheckInPayload collects one entry per participant.
type CheckInPayload struct {
	Prompt  string         `json:"prompt"`
	Entries []CheckInEntry `json:"entries"`
}

// GratitudeNote is one appreciation note.
type GratitudeNote struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	Text   string `json:"text"`
}

// GratitudePayload collects one note per participant.
type GratitudePayload struct {
	Prompt string          `json:"prompt"`
	Notes  []GratitudeNote `json:"notes"`
}

// StoryPayload accumulates the collaborative story one sentence per turn.
type StoryPayload struct {
	Prompt    string `json:"prompt"`
	Text      string `json:"text"`
	TurnCount int    `json:"turn_count"`
	MaxTurns  int    `json:"max_turns"`
}

// Coin sides.
const (
	CoinHeads = "Heads"
	CoinTails = "Tails"
)

// CoinTossPayload holds the side assignments and, once tossed, the
// outcome awaiting explicit acknowledgement.
type CoinTossPayload struct {
	Assignments map[string]string `json:"assignments"`
	Outcome     string            `json:"outcome,omitempty"`
	WinnerID    string            `json:"winner_id,omitempty"`
	AwaitingAck bool              `json:"awaiting_ack,omitempty"`
}

// ScriptLine is one line of a scripted scene. Turn ownership follows the
// line order; RecordedClip stays empty until the line is delivered.
type ScriptLine struct {
	Character      string      `json:"character"`
	Line           string      `json:"line"`
	VoiceDirection string      `json:"voice_direction,omitempty"`
	RecordedClip   EncodedClip `json:"recorded_clip,omitempty"`
	UserID         string      `json:"user_id,omitempty"`
}

// ScenesPayload walks a fixed script one recorded line at a time.
type ScenesPayload struct {
	ScenePrompt string       `json:"scene_prompt"`
	Script      []ScriptLine `json:"script"`
	CurrentLine int          `json:"current_line"`
}

// AudioLayer is one looped measure layer.
type AudioLayer struct {
	UserID   string      `json:"user_id"`
	Clip     EncodedClip `json:"clip"`
	LayerNum int         `json:"layer_num"`
}

// MeasuresPayload layers short musical measures into a shared loop.
type MeasuresPayload struct {
	Prompt         string       `json:"prompt"`
	Tempo          int          `json:"tempo"`
	Measures       int          `json:"measures"`
	SecondsPerLoop float64      `json:"seconds_per_loop"`
	Layers         []AudioLayer `json:"layers"`
	LayersPerUser  int          `json:"layers_per_user"`
}

// AudioPart is one recorded song segment.
type AudioPart struct {
	UserID         string      `json:"user_id"`
	Role           string      `json:"role,omitempty"`
	Clip           EncodedClip `json:"clip"`
	RecordedAtUnix int64       `json:"recorded_at_unix"`
}

// SongPayload collects recorded segments with a per-participant quota.
type SongPayload struct {
	Parts        []AudioPart `json:"parts"`
	PartsPerUser int         `json:"parts_per_user"`
}
