package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lexaid-ai/lexaid/pkg/classifier"
	"github.com/lexaid-ai/lexaid/pkg/convo"
	"github.com/lexaid-ai/lexaid/pkg/events"
	"github.com/lexaid-ai/lexaid/pkg/metrics"
	"github.com/lexaid-ai/lexaid/pkg/synthesizer"
	"github.com/lexaid-ai/lexaid/pkg/transcriber"
	"go.uber.org/zap"
)

const (
	// fallbackUtterance spoken when an adapter fails mid-turn
	fallbackUtterance = "I'm sorry, something went wrong on my end. Could you say that again?"
	// calmingUtterance spoken immediately when an emergency is detected
	calmingUtterance = "I hear you. Your emergency contacts are being notified right now. Stay where you are and keep talking to me."
)

// Emergency signal sources carried on the event bus
const (
	EmergencySourceClassifier = "classifier"
	EmergencySourceEngine     = "engine"
)

// Sender delivers one typed event to the client
type Sender interface {
	Send(eventType string, payload interface{}) error
}

// Adapters the four external model boundaries a session talks to
type Adapters struct {
	Transcriber transcriber.Service
	Classifier  classifier.Service
	Engine      convo.Engine
	Synthesizer synthesizer.Service
}

// LocationSource resolves a user's last-known location for classifier calls
type LocationSource interface {
	LastKnown(ctx context.Context, userID uint) string
}

// SessionOptions per-session start options
type SessionOptions struct {
	Language           string
	EmergencyDetection bool
	AudioQuality       string
}

// SessionConfig engine tuning shared by all sessions
type SessionConfig struct {
	FlushBytes         int
	FlushInterval      time.Duration
	EmergencyThreshold float64
	TurnLengthLimit    int
	AdapterTimeout     time.Duration
	LatencyWindowSize  int
}

// normalize fills zero fields with the shipped defaults
func (c SessionConfig) normalize() SessionConfig {
	if c.FlushBytes <= 0 {
		c.FlushBytes = 50 * 1024
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 3 * time.Second
	}
	if c.EmergencyThreshold <= 0 {
		c.EmergencyThreshold = 0.7
	}
	if c.TurnLengthLimit <= 0 {
		c.TurnLengthLimit = 50
	}
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = 10 * time.Second
	}
	if c.LatencyWindowSize <= 0 {
		c.LatencyWindowSize = 20
	}
	return c
}

// VoiceSession one user's live voice conversation. All event handling
// runs on the connection's read goroutine, which is what makes flush
// processing strictly sequential per session; the mutex only protects
// fields the registry and reaper read from outside.
type VoiceSession struct {
	ID     string
	UserID uint

	mu           sync.RWMutex
	language     string
	active       bool
	lastActivity time.Time
	transcript   string

	startedAt time.Time
	opts      SessionOptions
	cfg       SessionConfig
	state     *StateMachine
	buffer    *ChunkBuffer
	telemetry *Telemetry
	sender    Sender
	adapters  Adapters
	bus       *events.EventBus
	locations LocationSource
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewVoiceSession creates and activates a session. Only the Registry
// calls this; use Registry.Start to enforce one session per user.
func NewVoiceSession(ctx context.Context, id string, userID uint, opts SessionOptions,
	cfg SessionConfig, adapters Adapters, sender Sender, bus *events.EventBus,
	locations LocationSource, logger *zap.Logger) *VoiceSession {

	if logger == nil {
		logger = zap.L()
	}
	cfg = cfg.normalize()
	sessionCtx, cancel := context.WithCancel(ctx)
	now := time.Now()

	s := &VoiceSession{
		ID:           id,
		UserID:       userID,
		language:     opts.Language,
		active:       true,
		lastActivity: now,
		startedAt:    now,
		opts:         opts,
		cfg:          cfg,
		state:        NewStateMachine(),
		buffer:       NewChunkBuffer(cfg.FlushBytes, cfg.FlushInterval, now),
		telemetry:    NewTelemetry(cfg.LatencyWindowSize),
		sender:       sender,
		adapters:     adapters,
		bus:          bus,
		locations:    locations,
		logger:       logger.With(zap.String("sessionId", id), zap.Uint("userId", userID)),
		ctx:          sessionCtx,
		cancel:       cancel,
	}
	s.state.Activate()
	return s
}

// HandleAudioChunk acknowledges the fragment immediately, buffers it,
// and processes a flush inline when either flush condition is met.
func (s *VoiceSession) HandleAudioChunk(data []byte, seq uint64) {
	if !s.IsActive() {
		return
	}
	s.touch()
	s.telemetry.RecordChunk()

	// acknowledge on arrival, decoupled from flush timing
	s.send(EventChunkReceived, ChunkReceivedPayload{SequenceNumber: seq})

	s.buffer.Append(data, seq)
	if s.buffer.ShouldFlush(time.Now()) {
		blob := s.buffer.Flush(time.Now())
		s.processFlush(blob)
	}
}

// HandleTextInput bypasses audio buffering and feeds the text straight
// into turn accumulation.
func (s *VoiceSession) HandleTextInput(text string) {
	if !s.IsActive() || strings.TrimSpace(text) == "" {
		return
	}
	s.touch()
	s.appendTranscript(text)
	if turn, done := s.takeCompletedTurn(); done {
		s.completeTurn(turn, 1.0)
	} else {
		s.send(EventTranscription, TranscriptionPayload{Text: s.Transcript(), Confidence: 1.0, IsPartial: true})
	}
}

// ChangeLanguage switches the language used for all subsequent adapter calls
func (s *VoiceSession) ChangeLanguage(language string) {
	if language == "" {
		return
	}
	s.mu.Lock()
	s.language = language
	s.mu.Unlock()
	s.logger.Info("session language changed", zap.String("language", language))
}

// ApplyQualityReport folds client-side measurements into telemetry
func (s *VoiceSession) ApplyQualityReport(report QualityReportPayload) {
	s.telemetry.ApplyQualityReport(report.AudioQuality, report.ConnectionStability)
}

// processFlush runs the flush pipeline: classifier first (pre-emption),
// then transcription and turn accumulation. Adapter failures degrade to
// a dropped flush; the session always survives.
func (s *VoiceSession) processFlush(blob []byte) {
	if len(blob) == 0 {
		return
	}
	metrics.FlushesTotal.Inc()
	s.telemetry.RecordFlush()

	cls, err := s.classify(blob)
	if err != nil {
		s.dropFlush("classifier", err)
		return
	}
	if !s.IsActive() {
		// session ended while the call was outstanding; discard the result
		return
	}

	if s.emergencyEnabled() && cls.Confidence > s.cfg.EmergencyThreshold {
		if s.state.MarkEmergency() {
			s.dispatchEmergency(EmergencySourceClassifier, cls.Type, cls.Confidence, cls.UrgencyLevel)
			// pre-emption: this flush's normal processing is skipped
			return
		}
		s.logger.Debug("emergency signal after dispatch, continuing normally",
			zap.Float64("confidence", cls.Confidence))
	}

	tr, err := s.transcribe(blob)
	if err != nil {
		s.dropFlush("transcriber", err)
		return
	}
	if !s.IsActive() {
		return
	}

	s.telemetry.RecordTranscription(tr.Confidence)
	s.appendTranscript(tr.Text)

	if turn, done := s.takeCompletedTurn(); done {
		s.completeTurn(turn, tr.Confidence)
	} else {
		s.send(EventTranscription, TranscriptionPayload{Text: s.Transcript(), Confidence: tr.Confidence, IsPartial: true})
	}
}

// completeTurn hands one completed utterance to the conversation engine
// and speaks the reply.
func (s *VoiceSession) completeTurn(text string, confidence float64) {
	turnStart := time.Now()
	s.send(EventTranscription, TranscriptionPayload{Text: text, Confidence: confidence, IsPartial: false})

	reply, err := s.converse(text)
	if err != nil {
		s.logger.Warn("conversation engine failed, falling back", zap.Error(err))
		s.sendFallback()
		return
	}
	if !s.IsActive() {
		return
	}

	// the engine may detect an emergency semantically even when the
	// audio classifier did not
	if reply.EmergencyDetected && s.emergencyEnabled() && s.state.MarkEmergency() {
		s.dispatchEmergency(EmergencySourceEngine, "distress", reply.Confidence, "high")
	}

	speechContext := synthesizer.ContextNormal
	if s.state.InEmergency() {
		speechContext = synthesizer.ContextEmergency
	}

	response := AIResponsePayload{
		Text:       reply.Text,
		Intent:     reply.Intent,
		Confidence: reply.Confidence,
		Actions:    reply.Actions,
	}
	if speech, err := s.synthesize(reply.Text, speechContext); err != nil {
		s.logger.Warn("synthesis failed, responding without audio", zap.Error(err))
	} else {
		response.Audio = speech.Audio
		response.AudioFormat = speech.Format
	}
	if !s.IsActive() {
		return
	}

	latency := time.Since(turnStart)
	s.telemetry.RecordTurn()
	s.telemetry.RecordLatency(latency)
	metrics.TurnLatency.Observe(latency.Seconds())

	s.send(EventAIResponse, response)
}

// dispatchEmergency emits the acknowledgment and hands persistence plus
// contact alerting to the event bus. Callers must only invoke this when
// MarkEmergency returned true, so it can never run twice for a session.
func (s *VoiceSession) dispatchEmergency(source, emergencyType string, confidence float64, urgency string) {
	metrics.EmergenciesTotal.Inc()
	s.logger.Warn("emergency detected",
		zap.String("source", source),
		zap.String("type", emergencyType),
		zap.Float64("confidence", confidence))

	payload := EmergencyDetectedPayload{
		Type:         emergencyType,
		Confidence:   confidence,
		UrgencyLevel: urgency,
	}
	if speech, err := s.synthesize(calmingUtterance, synthesizer.ContextEmergency); err != nil {
		s.logger.Warn("calming acknowledgment synthesis failed", zap.Error(err))
	} else {
		payload.AudioResponse = speech.Audio
		payload.AudioFormat = speech.Format
	}
	s.send(EventEmergencyDetected, payload)

	// alerting and persistence ride the bus after the acknowledgment is
	// already on the wire; a failure there never reverses it
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:   events.TypeEmergencyDetected,
			Source: "voice-session",
			Data: map[string]interface{}{
				"sessionId":    s.ID,
				"userId":       s.UserID,
				"type":         emergencyType,
				"confidence":   confidence,
				"urgencyLevel": urgency,
				"source":       source,
				"location":     s.lastKnownLocation(),
			},
		})
	}
}

// End deactivates the session. Returns the session duration; safe to
// call more than once.
func (s *VoiceSession) End() time.Duration {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return time.Since(s.startedAt)
	}
	s.active = false
	s.mu.Unlock()

	s.cancel()
	s.state.End()
	duration := time.Since(s.startedAt)
	s.send(EventSessionEnded, SessionEndedPayload{Duration: duration.Seconds()})
	s.logger.Info("session ended", zap.Duration("duration", duration))
	return duration
}

// IsActive reports whether the session still accepts events
func (s *VoiceSession) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// State returns the lifecycle state
func (s *VoiceSession) State() State {
	return s.state.Current()
}

// EmergencyDetected reports whether an emergency was ever detected,
// including after the session has ended.
func (s *VoiceSession) EmergencyDetected() bool {
	return s.state.EverEmergency()
}

// Language returns the current session language
func (s *VoiceSession) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// Transcript returns the accumulated, not yet completed turn text
func (s *VoiceSession) Transcript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript
}

// Telemetry returns the session's telemetry record
func (s *VoiceSession) Telemetry() *Telemetry {
	return s.telemetry
}

// StartedAt returns the session start time
func (s *VoiceSession) StartedAt() time.Time {
	return s.startedAt
}

// LastActivity returns the time of the last inbound event
func (s *VoiceSession) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

func (s *VoiceSession) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *VoiceSession) emergencyEnabled() bool {
	return s.opts.EmergencyDetection
}

// appendTranscript space-joins new text onto the turn buffer
func (s *VoiceSession) appendTranscript(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.mu.Lock()
	if s.transcript == "" {
		s.transcript = text
	} else {
		s.transcript += " " + text
	}
	s.mu.Unlock()
}

// takeCompletedTurn checks the completion heuristic and, when a turn is
// complete, returns it and clears the buffer in the same critical
// section. The length limit bounds latency for unpunctuated speech; it
// is known to split long sentences mid-thought and is kept for parity
// with shipped behavior.
func (s *VoiceSession) takeCompletedTurn() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := strings.TrimSpace(s.transcript)
	if text == "" {
		return "", false
	}
	if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") &&
		len(text) <= s.cfg.TurnLengthLimit {
		return "", false
	}
	s.transcript = ""
	return text, true
}

func (s *VoiceSession) dropFlush(adapter string, err error) {
	metrics.DroppedFlushesTotal.Inc()
	metrics.AdapterFailures.WithLabelValues(adapter).Inc()
	s.telemetry.RecordDroppedFlush()
	s.logger.Warn("flush dropped", zap.String("adapter", adapter), zap.Error(err))
}

// sendFallback degrades a failed turn to the fixed apology utterance
func (s *VoiceSession) sendFallback() {
	metrics.AdapterFailures.WithLabelValues("engine").Inc()
	response := AIResponsePayload{Text: fallbackUtterance, Intent: "fallback", Confidence: 0}
	if speech, err := s.synthesize(fallbackUtterance, synthesizer.ContextNormal); err == nil {
		response.Audio = speech.Audio
		response.AudioFormat = speech.Format
	}
	if !s.IsActive() {
		return
	}
	s.send(EventAIResponse, response)
}

func (s *VoiceSession) classify(blob []byte) (*classifier.Result, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.AdapterTimeout)
	defer cancel()
	return s.adapters.Classifier.Classify(ctx, blob, classifier.Options{
		SessionID: s.ID,
		Language:  s.Language(),
		Location:  s.lastKnownLocation(),
	})
}

func (s *VoiceSession) transcribe(blob []byte) (*transcriber.Result, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.AdapterTimeout)
	defer cancel()
	return s.adapters.Transcriber.Transcribe(ctx, blob, transcriber.Options{
		Language:  s.Language(),
		SessionID: s.ID,
	})
}

func (s *VoiceSession) converse(text string) (*convo.Reply, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.AdapterTimeout)
	defer cancel()
	return s.adapters.Engine.Converse(ctx, s.ID, text, convo.Options{Language: s.Language()})
}

func (s *VoiceSession) synthesize(text, speechContext string) (*synthesizer.Result, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.AdapterTimeout)
	defer cancel()
	return s.adapters.Synthesizer.Synthesize(ctx, text, synthesizer.Options{
		Language: s.Language(),
		Context:  speechContext,
	})
}

func (s *VoiceSession) lastKnownLocation() string {
	if s.locations == nil {
		return ""
	}
	return s.locations.LastKnown(s.ctx, s.UserID)
}

func (s *VoiceSession) send(eventType string, payload interface{}) {
	if err := s.sender.Send(eventType, payload); err != nil {
		s.logger.Debug("event delivery failed", zap.String("event", eventType), zap.Error(err))
	}
}
