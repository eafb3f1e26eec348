package transcriber

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// HTTPService generic transcription service speaking a small JSON
// contract: POST /v1/transcribe with base64 audio, returns text,
// confidence and detected language.
type HTTPService struct {
	client *resty.Client
	logger *logrus.Logger
}

type httpTranscribeRequest struct {
	Audio     []byte `json:"audio"`
	Language  string `json:"language,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// NewHTTPService creates an HTTP transcription client
func NewHTTPService(cfg Config) (*HTTPService, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("http transcriber requires a base URL")
	}
	client := resty.New().SetBaseURL(cfg.BaseURL)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &HTTPService{client: client, logger: logrus.StandardLogger()}, nil
}

// Transcribe posts the audio blob and decodes the JSON result
func (s *HTTPService) Transcribe(ctx context.Context, audio []byte, opts Options) (*Result, error) {
	var result Result
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(httpTranscribeRequest{Audio: audio, Language: opts.Language, SessionID: opts.SessionID}).
		SetResult(&result).
		Post("/v1/transcribe")
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("transcription service returned %s", resp.Status())
	}
	s.logger.WithField("sessionId", opts.SessionID).Debug("transcription completed")
	return &result, nil
}
