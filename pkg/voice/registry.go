package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexaid-ai/lexaid/internal/models"
	"github.com/lexaid-ai/lexaid/pkg/events"
	"github.com/lexaid-ai/lexaid/pkg/metrics"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotAuthenticated start attempted without an authenticated user
	ErrNotAuthenticated = errors.New("voice: not authenticated")
	// ErrSessionNotFound event referenced a session this node does not hold
	ErrSessionNotFound = errors.New("voice: session not found")
)

// Registry owns all live sessions on this node. A single mutex guards
// both indexes so the one-session-per-user rule holds under concurrent
// starts.
type Registry struct {
	db        *gorm.DB
	bus       *events.EventBus
	adapters  Adapters
	locations LocationSource
	cfg       SessionConfig
	idleTTL   time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	byID   map[string]*VoiceSession
	byUser map[uint]*VoiceSession

	cron *cron.Cron
}

// NewRegistry creates a session registry
func NewRegistry(db *gorm.DB, bus *events.EventBus, adapters Adapters,
	locations LocationSource, cfg SessionConfig, idleTTL time.Duration, logger *zap.Logger) *Registry {

	if logger == nil {
		logger = zap.L()
	}
	if idleTTL <= 0 {
		idleTTL = 5 * time.Minute
	}
	return &Registry{
		db:        db,
		bus:       bus,
		adapters:  adapters,
		locations: locations,
		cfg:       cfg.normalize(),
		idleTTL:   idleTTL,
		logger:    logger,
		byID:      make(map[string]*VoiceSession),
		byUser:    make(map[uint]*VoiceSession),
	}
}

// Start creates a session for the user, force-ending any session the
// user already holds. The replacement is atomic with respect to other
// Start calls.
func (r *Registry) Start(ctx context.Context, userID uint, opts SessionOptions, sender Sender) (*VoiceSession, error) {
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}
	if opts.Language == "" {
		opts.Language = "en"
	}

	id := uuid.NewString()
	session := NewVoiceSession(ctx, id, userID, opts, r.cfg, r.adapters, sender, r.bus, r.locations, r.logger)

	// the index swap is atomic so concurrent starts for one user can
	// never leave two live sessions; the displaced session is torn down
	// outside the lock
	r.mu.Lock()
	old := r.byUser[userID]
	if old != nil {
		delete(r.byID, old.ID)
	}
	r.byID[id] = session
	r.byUser[userID] = session
	r.mu.Unlock()

	if old != nil {
		r.teardown(old, models.SessionStatusForced)
	}

	metrics.ActiveSessions.Inc()
	record := &models.VoiceSessionRecord{
		SessionID: id,
		UserID:    userID,
		Language:  opts.Language,
		Status:    models.SessionStatusActive,
		StartTime: session.StartedAt(),
	}
	if r.db != nil {
		if err := models.CreateVoiceSessionRecord(r.db, record); err != nil {
			r.logger.Error("session record create failed", zap.String("sessionId", id), zap.Error(err))
		}
	}

	r.logger.Info("voice session started",
		zap.String("sessionId", id),
		zap.Uint("userId", userID),
		zap.String("language", opts.Language))
	return session, nil
}

// End removes and tears down a session. Unknown ids are a no-op.
func (r *Registry) End(sessionID string) {
	r.endWithStatus(sessionID, models.SessionStatusEnded)
}

// ForceEnd ends a session on behalf of the server rather than the
// client. Reports whether a session was actually removed, so repeated
// calls are idempotent.
func (r *Registry) ForceEnd(sessionID string) bool {
	return r.endWithStatus(sessionID, models.SessionStatusForced)
}

func (r *Registry) endWithStatus(sessionID, status string) bool {
	r.mu.Lock()
	session, ok := r.byID[sessionID]
	if ok {
		delete(r.byID, sessionID)
		delete(r.byUser, session.UserID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.teardown(session, status)
	return true
}

// teardown deactivates the session and persists its final summary.
// Callers must already have removed it from both indexes.
func (r *Registry) teardown(session *VoiceSession, status string) {
	session.End()
	metrics.ActiveSessions.Dec()
	session.adapters.Engine.Release(session.ID)

	if r.db == nil {
		return
	}
	snap := session.Telemetry().Snapshot()
	summary := models.SessionSummary{
		Status:            status,
		EndTime:           time.Now(),
		TurnCount:         snap.TurnCount,
		EmergencyDetected: session.EmergencyDetected(),
		AvgLatencyMs:      snap.AvgLatencyMs,
		AudioQuality:      snap.AudioQuality,
		TranscriptionAcc:  snap.TranscriptionAccuracy,
		ConnStability:     snap.ConnectionStability,
	}
	if err := models.CompleteVoiceSessionRecord(r.db, session.ID, summary); err != nil {
		r.logger.Error("session summary write failed", zap.String("sessionId", session.ID), zap.Error(err))
	}

	if r.bus != nil {
		r.bus.Publish(events.Event{
			Type:   events.TypeSessionEnded,
			Source: "voice-registry",
			Data: map[string]interface{}{
				"sessionId": session.ID,
				"userId":    session.UserID,
				"status":    status,
				"turnCount": snap.TurnCount,
			},
		})
	}
}

// Get returns a live session by id
func (r *Registry) Get(sessionID string) (*VoiceSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.byID[sessionID]
	return session, ok
}

// GetByUser returns the user's live session, if any
func (r *Registry) GetByUser(userID uint) (*VoiceSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.byUser[userID]
	return session, ok
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// StartReaper begins the periodic sweep that force-ends sessions idle
// longer than the configured TTL.
func (r *Registry) StartReaper() {
	if r.cron != nil {
		return
	}
	r.cron = cron.New()
	r.cron.AddFunc("@every 30s", r.reapIdle)
	r.cron.Start()
}

// StopReaper stops the idle sweep
func (r *Registry) StopReaper() {
	if r.cron != nil {
		r.cron.Stop()
		r.cron = nil
	}
}

func (r *Registry) reapIdle() {
	cutoff := time.Now().Add(-r.idleTTL)

	r.mu.Lock()
	var stale []string
	for id, session := range r.byID {
		if session.LastActivity().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.logger.Info("reaping idle session", zap.String("sessionId", id))
		r.ForceEnd(id)
	}
}
