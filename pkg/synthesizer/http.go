package synthesizer

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// HTTPService generic synthesis service speaking a small JSON contract:
// POST /v1/synthesize, returns base64 audio plus format and voice.
type HTTPService struct {
	client *resty.Client
	voice  string
	logger *logrus.Logger
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Context  string `json:"context,omitempty"`
	Voice    string `json:"voice,omitempty"`
}

// NewHTTPService creates an HTTP synthesis client
func NewHTTPService(cfg Config) (*HTTPService, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("http synthesizer requires a base URL")
	}
	client := resty.New().SetBaseURL(cfg.BaseURL)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &HTTPService{client: client, voice: cfg.Voice, logger: logrus.StandardLogger()}, nil
}

// Synthesize posts the text and decodes the JSON result
func (s *HTTPService) Synthesize(ctx context.Context, text string, opts Options) (*Result, error) {
	var result Result
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(synthesizeRequest{Text: text, Language: opts.Language, Context: opts.Context, Voice: s.voice}).
		SetResult(&result).
		Post("/v1/synthesize")
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("synthesis service returned %s", resp.Status())
	}
	if result.Format == "" {
		result.Format = "mp3"
	}
	return &result, nil
}
