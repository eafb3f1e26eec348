package transcriber

import "context"

// Options per-call transcription options
type Options struct {
	Language  string
	SessionID string
}

// Result transcription result
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// Service speech-to-text adapter contract. The audio blob is opaque to
// the caller; the vendor decides what container formats it accepts.
type Service interface {
	Transcribe(ctx context.Context, audio []byte, opts Options) (*Result, error)
}

// Config vendor configuration
type Config struct {
	Vendor  Vendor
	APIKey  string
	BaseURL string
	Model   string
}
