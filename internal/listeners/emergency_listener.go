package listeners

import (
	"context"
	"time"

	"github.com/lexaid-ai/lexaid/internal/models"
	"github.com/lexaid-ai/lexaid/pkg/alerting"
	"github.com/lexaid-ai/lexaid/pkg/events"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const alertTimeout = 30 * time.Second

// EmergencyListener persists detected emergencies and dispatches
// contact alerts. Alert delivery runs on its own goroutine so the
// session pipeline is never blocked, and a delivery failure never
// reverses the acknowledgment the client already received.
type EmergencyListener struct {
	db       *gorm.DB
	notifier alerting.Notifier
	logger   *zap.Logger
}

// NewEmergencyListener creates the listener
func NewEmergencyListener(db *gorm.DB, notifier alerting.Notifier, logger *zap.Logger) *EmergencyListener {
	if logger == nil {
		logger = zap.L()
	}
	return &EmergencyListener{db: db, notifier: notifier, logger: logger}
}

// Register subscribes the listener on the bus
func (l *EmergencyListener) Register(bus *events.EventBus) {
	bus.Subscribe(events.TypeEmergencyDetected, l.handle)
}

func (l *EmergencyListener) handle(event events.Event) error {
	record := &models.EmergencyRecord{
		SessionID:  cast.ToString(event.Data["sessionId"]),
		UserID:     cast.ToUint(event.Data["userId"]),
		Type:       cast.ToString(event.Data["type"]),
		Confidence: cast.ToFloat64(event.Data["confidence"]),
		Urgency:    cast.ToString(event.Data["urgencyLevel"]),
		Source:     cast.ToString(event.Data["source"]),
		Location:   cast.ToString(event.Data["location"]),
	}
	if l.db != nil {
		if err := models.CreateEmergencyRecord(l.db, record); err != nil {
			l.logger.Error("emergency record create failed",
				zap.String("sessionId", record.SessionID), zap.Error(err))
		}
	}

	if l.notifier == nil {
		return nil
	}
	alert := alerting.Alert{
		SessionID:  record.SessionID,
		UserID:     record.UserID,
		Type:       record.Type,
		Confidence: record.Confidence,
		Urgency:    record.Urgency,
		Location:   record.Location,
		OccurredAt: event.Timestamp.Format(time.RFC3339),
	}
	go l.notify(alert, record.ID)
	return nil
}

func (l *EmergencyListener) notify(alert alerting.Alert, recordID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()

	if err := l.notifier.NotifyContacts(ctx, alert); err != nil {
		l.logger.Error("emergency alert delivery failed",
			zap.String("sessionId", alert.SessionID), zap.Error(err))
		return
	}
	if l.db != nil && recordID != 0 {
		if err := models.MarkEmergencyAlerted(l.db, recordID); err != nil {
			l.logger.Error("emergency alerted flag update failed",
				zap.Uint("recordId", recordID), zap.Error(err))
		}
	}
}
