package listeners

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/lexaid-ai/lexaid/internal/models"
	"github.com/lexaid-ai/lexaid/pkg/alerting"
	"github.com/lexaid-ai/lexaid/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []alerting.Alert
	err    error
	done   chan struct{}
}

func newFakeNotifier(err error) *fakeNotifier {
	return &fakeNotifier{err: err, done: make(chan struct{}, 4)}
}

func (f *fakeNotifier) NotifyContacts(ctx context.Context, alert alerting.Alert) error {
	f.mu.Lock()
	f.alerts = append(f.alerts, alert)
	f.mu.Unlock()
	f.done <- struct{}{}
	return f.err
}

func emergencyEvent() events.Event {
	return events.Event{
		Type:      events.TypeEmergencyDetected,
		Timestamp: time.Now(),
		Source:    "voice-session",
		Data: map[string]interface{}{
			"sessionId":    "sess-9",
			"userId":       uint(4),
			"type":         "medical",
			"confidence":   0.88,
			"urgencyLevel": "high",
			"source":       models.EmergencySourceClassifier,
			"location":     "12.34000,56.78000",
		},
	}
}

func TestEmergencyPersistedAndAlerted(t *testing.T) {
	db := newTestDB(t)
	notifier := newFakeNotifier(nil)
	bus := events.NewEventBus()
	NewEmergencyListener(db, notifier, zap.NewNop()).Register(bus)

	bus.Publish(emergencyEvent())

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier never invoked")
	}

	records, err := models.GetEmergenciesBySession(db, "sess-9")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "medical", records[0].Type)
	assert.Equal(t, uint(4), records[0].UserID)
	assert.Equal(t, models.EmergencySourceClassifier, records[0].Source)

	notifier.mu.Lock()
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "sess-9", notifier.alerts[0].SessionID)
	assert.Equal(t, "high", notifier.alerts[0].Urgency)
	notifier.mu.Unlock()

	// the alerted flag is written after delivery succeeds
	assert.Eventually(t, func() bool {
		records, err := models.GetEmergenciesBySession(db, "sess-9")
		return err == nil && len(records) == 1 && records[0].Alerted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAlertFailureKeepsRecord(t *testing.T) {
	db := newTestDB(t)
	notifier := newFakeNotifier(errors.New("alerting service down"))
	bus := events.NewEventBus()
	NewEmergencyListener(db, notifier, zap.NewNop()).Register(bus)

	bus.Publish(emergencyEvent())

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier never invoked")
	}

	// the record stays, with alerted still false
	assert.Never(t, func() bool {
		records, _ := models.GetEmergenciesBySession(db, "sess-9")
		return len(records) == 1 && records[0].Alerted
	}, 100*time.Millisecond, 20*time.Millisecond)

	records, err := models.GetEmergenciesBySession(db, "sess-9")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Alerted)
}
