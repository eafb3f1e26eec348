package alerting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/sirupsen/logrus"
)

// Alert one emergency notification to a user's registered contacts.
// Delivery fan-out (SMS, email, phone trees) happens inside the alerting
// service, not here.
type Alert struct {
	SessionID  string  `json:"sessionId"`
	UserID     uint    `json:"userId"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Urgency    string  `json:"urgencyLevel"`
	Location   string  `json:"location,omitempty"`
	OccurredAt string  `json:"occurredAt"`
}

// Notifier dispatches emergency alerts
type Notifier interface {
	NotifyContacts(ctx context.Context, alert Alert) error
}

// HTTPNotifier alerting service client
type HTTPNotifier struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	logger   *logrus.Logger
}

// NewHTTPNotifier creates an alerting client
func NewHTTPNotifier(endpoint, apiKey string) *HTTPNotifier {
	return &HTTPNotifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		timeout:  15 * time.Second,
		logger:   logrus.StandardLogger(),
	}
}

// NotifyContacts posts the alert to the alerting service. Callers run
// this off the session goroutine; a failure here is logged and must
// never reverse the acknowledgment already sent to the client.
func (n *HTTPNotifier) NotifyContacts(ctx context.Context, alert Alert) error {
	if n.endpoint == "" {
		return fmt.Errorf("alerting endpoint not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err := requests.
		URL(n.endpoint).
		Header("Authorization", "Bearer "+n.apiKey).
		BodyJSON(&alert).
		CheckStatus(http.StatusOK, http.StatusAccepted, http.StatusCreated).
		Fetch(ctx)
	if err != nil {
		return fmt.Errorf("alert dispatch failed: %w", err)
	}
	n.logger.WithFields(logrus.Fields{
		"sessionId": alert.SessionID,
		"type":      alert.Type,
	}).Info("emergency contacts notified")
	return nil
}
