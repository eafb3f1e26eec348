package transcriber

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIService Whisper transcription via the OpenAI API
type OpenAIService struct {
	client *openai.Client
	model  string
	logger *logrus.Logger
}

// NewOpenAIService creates a Whisper-backed transcription service
func NewOpenAIService(cfg Config) *OpenAIService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIService{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logrus.StandardLogger(),
	}
}

// Transcribe sends the audio blob to Whisper. Whisper does not report a
// per-utterance confidence, so a fixed high confidence is returned; the
// telemetry EWMA treats it like any other sample.
func (s *OpenAIService) Transcribe(ctx context.Context, audio []byte, opts Options) (*Result, error) {
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.model,
		Reader:   bytes.NewReader(audio),
		FilePath: "audio.webm",
		Language: opts.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	language := resp.Language
	if language == "" {
		language = opts.Language
	}
	s.logger.WithFields(logrus.Fields{
		"sessionId": opts.SessionID,
		"chars":     len(resp.Text),
	}).Debug("transcription completed")

	return &Result{
		Text:       resp.Text,
		Confidence: 0.95,
		Language:   language,
	}, nil
}
