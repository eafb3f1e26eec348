package classifier

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// HTTPService emergency classifier over a JSON contract:
// POST /v1/classify with base64 audio plus session context.
type HTTPService struct {
	client *resty.Client
	logger *logrus.Logger
}

type classifyRequest struct {
	Audio     []byte `json:"audio"`
	SessionID string `json:"sessionId,omitempty"`
	Language  string `json:"language,omitempty"`
	Location  string `json:"location,omitempty"`
}

// NewHTTPService creates a classifier client
func NewHTTPService(cfg Config) (*HTTPService, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("classifier requires a base URL")
	}
	client := resty.New().SetBaseURL(cfg.BaseURL)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &HTTPService{client: client, logger: logrus.StandardLogger()}, nil
}

// Classify scores the audio blob for emergency content
func (s *HTTPService) Classify(ctx context.Context, audio []byte, opts Options) (*Result, error) {
	var result Result
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(classifyRequest{
			Audio:     audio,
			SessionID: opts.SessionID,
			Language:  opts.Language,
			Location:  opts.Location,
		}).
		SetResult(&result).
		Post("/v1/classify")
	if err != nil {
		return nil, fmt.Errorf("classification request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("classifier returned %s", resp.Status())
	}
	s.logger.WithFields(logrus.Fields{
		"sessionId":  opts.SessionID,
		"confidence": result.Confidence,
	}).Debug("classification completed")
	return &result, nil
}

// Disabled classifier used when emergency detection is turned off for a
// session; always reports no emergency.
type Disabled struct{}

// Classify reports no emergency
func (Disabled) Classify(ctx context.Context, audio []byte, opts Options) (*Result, error) {
	return &Result{IsEmergency: false, Confidence: 0}, nil
}
