package synthesizer

import "context"

// Speech contexts. Emergency context selects a calmer, slower voice
// where the vendor supports it.
const (
	ContextNormal    = "normal"
	ContextEmergency = "emergency"
)

// Options per-call synthesis options
type Options struct {
	Language string
	Context  string // ContextNormal or ContextEmergency
}

// Result synthesized speech
type Result struct {
	Audio     []byte `json:"audio"`
	Format    string `json:"format"`
	VoiceUsed string `json:"voiceUsed"`
}

// Service text-to-speech adapter contract
type Service interface {
	Synthesize(ctx context.Context, text string, opts Options) (*Result, error)
}

// Config vendor configuration
type Config struct {
	Vendor  Vendor
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
}
