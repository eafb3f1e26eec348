package classifier

import "context"

// Options per-call classification options
type Options struct {
	SessionID string
	Language  string
	Location  string // last-known location, free-form
}

// Result emergency classification result. The classifier runs before
// transcription on every flush; only the scored contract matters here,
// never the model internals.
type Result struct {
	IsEmergency  bool    `json:"isEmergency"`
	Confidence   float64 `json:"confidence"`
	Type         string  `json:"type"`
	UrgencyLevel string  `json:"urgencyLevel"`
}

// Service emergency audio classifier contract
type Service interface {
	Classify(ctx context.Context, audio []byte, opts Options) (*Result, error)
}

// Config classifier service configuration
type Config struct {
	BaseURL string
	APIKey  string
}
