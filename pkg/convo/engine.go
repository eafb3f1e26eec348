package convo

import "context"

// Options per-turn options
type Options struct {
	Language string
}

// Reply one conversational turn's response. EmergencyDetected is the
// engine's own semantic judgement, independent of the audio classifier.
type Reply struct {
	Text              string   `json:"text"`
	Intent            string   `json:"intent"`
	Confidence        float64  `json:"confidence"`
	Actions           []string `json:"actions"`
	EmergencyDetected bool     `json:"emergencyDetected"`
}

// Engine conversation engine adapter contract. Implementations own the
// per-session conversation context; Release drops it when the session
// ends.
type Engine interface {
	Converse(ctx context.Context, sessionID, text string, opts Options) (*Reply, error)
	Release(sessionID string)
}

// Config engine configuration
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	MaxHistory   int
}
