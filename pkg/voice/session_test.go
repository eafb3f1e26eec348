package voice

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lexaid-ai/lexaid/pkg/classifier"
	"github.com/lexaid-ai/lexaid/pkg/convo"
	"github.com/lexaid-ai/lexaid/pkg/events"
	"github.com/lexaid-ai/lexaid/pkg/synthesizer"
	"github.com/lexaid-ai/lexaid/pkg/transcriber"
	"go.uber.org/zap"
)

type sentEvent struct {
	Type    string
	Payload interface{}
}

type recordingSender struct {
	mu     sync.Mutex
	events []sentEvent
}

func (s *recordingSender) Send(eventType string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sentEvent{Type: eventType, Payload: payload})
	return nil
}

func (s *recordingSender) ofType(eventType string) []sentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentEvent
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeTranscriber struct {
	mu         sync.Mutex
	text       string
	confidence float64
	err        error
	calls      int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, opts transcriber.Options) (*transcriber.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &transcriber.Result{Text: f.text, Confidence: f.confidence}, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClassifier struct {
	confidence float64
	typ        string
	urgency    string
	err        error
}

func (f *fakeClassifier) Classify(ctx context.Context, audio []byte, opts classifier.Options) (*classifier.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &classifier.Result{
		IsEmergency:  f.confidence > 0.5,
		Confidence:   f.confidence,
		Type:         f.typ,
		UrgencyLevel: f.urgency,
	}, nil
}

type fakeEngine struct {
	mu        sync.Mutex
	reply     convo.Reply
	err       error
	calls     int
	inputs    []string
	released  []string
	waitOnCtx bool
}

func (f *fakeEngine) Converse(ctx context.Context, sessionID, text string, opts convo.Options) (*convo.Reply, error) {
	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, text)
	f.mu.Unlock()
	if f.waitOnCtx {
		<-ctx.Done()
	}
	if f.err != nil {
		return nil, f.err
	}
	reply := f.reply
	return &reply, nil
}

func (f *fakeEngine) Release(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, sessionID)
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeEngine) lastInput() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return ""
	}
	return f.inputs[len(f.inputs)-1]
}

type fakeSynthesizer struct {
	mu    sync.Mutex
	err   error
	calls int
	texts []string
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string, opts synthesizer.Options) (*synthesizer.Result, error) {
	f.mu.Lock()
	f.calls++
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &synthesizer.Result{Audio: []byte("mp3-bytes"), Format: "mp3"}, nil
}

func (f *fakeSynthesizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	session     *VoiceSession
	sender      *recordingSender
	transcriber *fakeTranscriber
	classifier  *fakeClassifier
	engine      *fakeEngine
	synthesizer *fakeSynthesizer
	bus         *events.EventBus
}

func newTestSession(t *testing.T, cfg SessionConfig, opts SessionOptions) *testEnv {
	t.Helper()
	env := &testEnv{
		sender:      &recordingSender{},
		transcriber: &fakeTranscriber{text: "hello", confidence: 0.9},
		classifier:  &fakeClassifier{confidence: 0.1},
		engine:      &fakeEngine{reply: convo.Reply{Text: "Of course.", Intent: "smalltalk", Confidence: 0.8}},
		synthesizer: &fakeSynthesizer{},
		bus:         events.NewEventBus(),
	}
	adapters := Adapters{
		Transcriber: env.transcriber,
		Classifier:  env.classifier,
		Engine:      env.engine,
		Synthesizer: env.synthesizer,
	}
	env.session = NewVoiceSession(context.Background(), "session-1", 1, opts, cfg, adapters,
		env.sender, env.bus, nil, zap.NewNop())
	return env
}

func defaultOpts() SessionOptions {
	return SessionOptions{Language: "en", EmergencyDetection: true}
}

func TestChunksAcknowledgedInArrivalOrder(t *testing.T) {
	env := newTestSession(t, SessionConfig{FlushBytes: 1 << 20, FlushInterval: time.Hour}, defaultOpts())

	for seq := uint64(1); seq <= 3; seq++ {
		env.session.HandleAudioChunk([]byte("audio"), seq)
	}

	acks := env.sender.ofType(EventChunkReceived)
	if len(acks) != 3 {
		t.Fatalf("expected 3 acks, got %d", len(acks))
	}
	for i, ack := range acks {
		payload := ack.Payload.(ChunkReceivedPayload)
		if payload.SequenceNumber != uint64(i+1) {
			t.Errorf("ack %d carries sequence %d", i, payload.SequenceNumber)
		}
	}
	if env.transcriber.callCount() != 0 {
		t.Errorf("no flush expected below both thresholds, transcriber called %d times", env.transcriber.callCount())
	}
}

func TestSizeThresholdFlushCompletesTurn(t *testing.T) {
	env := newTestSession(t, SessionConfig{FlushInterval: time.Hour}, defaultOpts())
	env.transcriber.text = "I need a tenancy agreement."

	chunk := bytes.Repeat([]byte{0x01}, 20*1024)
	env.session.HandleAudioChunk(chunk, 1)
	env.session.HandleAudioChunk(chunk, 2)
	if env.transcriber.callCount() != 0 {
		t.Fatal("40KB buffered must not flush at the 50KB threshold")
	}

	env.session.HandleAudioChunk(chunk, 3)

	if env.transcriber.callCount() != 1 {
		t.Fatalf("expected exactly one flush, transcriber called %d times", env.transcriber.callCount())
	}
	if env.engine.callCount() != 1 {
		t.Fatalf("punctuated transcript should complete one turn, engine called %d times", env.engine.callCount())
	}
	if env.engine.lastInput() != "I need a tenancy agreement." {
		t.Errorf("engine got %q", env.engine.lastInput())
	}

	finals := 0
	for _, e := range env.sender.ofType(EventTranscription) {
		if !e.Payload.(TranscriptionPayload).IsPartial {
			finals++
		}
	}
	if finals != 1 {
		t.Errorf("expected one final transcription event, got %d", finals)
	}
	responses := env.sender.ofType(EventAIResponse)
	if len(responses) != 1 {
		t.Fatalf("expected one ai-response, got %d", len(responses))
	}
	resp := responses[0].Payload.(AIResponsePayload)
	if resp.Text != "Of course." || len(resp.Audio) == 0 {
		t.Errorf("unexpected response payload: %+v", resp)
	}
	if env.session.Transcript() != "" {
		t.Errorf("transcript not cleared after turn: %q", env.session.Transcript())
	}
}

func TestIntervalFlush(t *testing.T) {
	env := newTestSession(t, SessionConfig{FlushBytes: 1 << 20, FlushInterval: 10 * time.Millisecond}, defaultOpts())
	env.transcriber.text = "hold on"

	env.session.HandleAudioChunk([]byte("a"), 1)
	if env.transcriber.callCount() != 1 {
		// the first chunk may land inside the interval depending on timing
		time.Sleep(15 * time.Millisecond)
		env.session.HandleAudioChunk([]byte("b"), 2)
	}

	if env.transcriber.callCount() == 0 {
		t.Fatal("interval elapsed with buffered audio, expected a flush")
	}
	partials := env.sender.ofType(EventTranscription)
	if len(partials) == 0 || !partials[0].Payload.(TranscriptionPayload).IsPartial {
		t.Error("short unpunctuated transcript should surface as a partial")
	}
}

func TestEmergencyPreemptsFlushAndDispatchesOnce(t *testing.T) {
	env := newTestSession(t, SessionConfig{FlushBytes: 1024, FlushInterval: time.Hour}, defaultOpts())
	env.classifier.confidence = 0.9
	env.classifier.typ = "security"
	env.classifier.urgency = "high"

	var published int
	var publishedData map[string]interface{}
	env.bus.Subscribe(events.TypeEmergencyDetected, func(event events.Event) error {
		published++
		publishedData = event.Data
		return nil
	})

	chunk := bytes.Repeat([]byte{0x01}, 2048)
	env.session.HandleAudioChunk(chunk, 1)

	alerts := env.sender.ofType(EventEmergencyDetected)
	if len(alerts) != 1 {
		t.Fatalf("expected one emergency-detected event, got %d", len(alerts))
	}
	payload := alerts[0].Payload.(EmergencyDetectedPayload)
	if payload.Type != "security" || payload.Confidence != 0.9 || payload.UrgencyLevel != "high" {
		t.Errorf("unexpected emergency payload: %+v", payload)
	}
	if len(payload.AudioResponse) == 0 {
		t.Error("calming acknowledgment audio missing")
	}
	if env.transcriber.callCount() != 0 {
		t.Error("emergency flush must pre-empt transcription")
	}
	if env.session.State() != StateEmergencyActive {
		t.Errorf("expected emergency-active, got %s", env.session.State())
	}
	if published != 1 {
		t.Fatalf("expected one bus publication, got %d", published)
	}
	if publishedData["type"] != "security" || publishedData["source"] != EmergencySourceClassifier {
		t.Errorf("unexpected bus data: %v", publishedData)
	}

	// a second high-confidence signal must not re-dispatch, and the
	// session keeps converting speech normally
	env.classifier.confidence = 0.95
	env.session.HandleAudioChunk(chunk, 2)

	if len(env.sender.ofType(EventEmergencyDetected)) != 1 {
		t.Error("second emergency signal re-dispatched")
	}
	if published != 1 {
		t.Errorf("expected one bus publication total, got %d", published)
	}
	if env.transcriber.callCount() != 1 {
		t.Errorf("post-emergency flush should transcribe normally, got %d calls", env.transcriber.callCount())
	}
}

func TestEmergencyDetectionDisabled(t *testing.T) {
	opts := defaultOpts()
	opts.EmergencyDetection = false
	env := newTestSession(t, SessionConfig{FlushBytes: 1024, FlushInterval: time.Hour}, opts)
	env.classifier.confidence = 0.9

	env.session.HandleAudioChunk(bytes.Repeat([]byte{0x01}, 2048), 1)

	if len(env.sender.ofType(EventEmergencyDetected)) != 0 {
		t.Error("emergency dispatched with detection disabled")
	}
	if env.transcriber.callCount() != 1 {
		t.Error("flush should proceed to transcription")
	}
}

func TestThresholdIsStrictlyGreaterThan(t *testing.T) {
	env := newTestSession(t, SessionConfig{FlushBytes: 1024, FlushInterval: time.Hour}, defaultOpts())
	env.classifier.confidence = 0.7 // exactly at the default threshold

	env.session.HandleAudioChunk(bytes.Repeat([]byte{0x01}, 2048), 1)

	if len(env.sender.ofType(EventEmergencyDetected)) != 0 {
		t.Error("confidence equal to the threshold must not trigger")
	}
	if env.transcriber.callCount() != 1 {
		t.Error("flush should proceed to transcription")
	}
}

func TestEngineEmergencyDetection(t *testing.T) {
	env := newTestSession(t, SessionConfig{}, defaultOpts())
	env.engine.reply = convo.Reply{
		Text:              "I am getting help to you now.",
		Intent:            "emergency",
		Confidence:        0.9,
		EmergencyDetected: true,
	}

	env.session.HandleTextInput("Someone is breaking into my house!")

	if len(env.sender.ofType(EventEmergencyDetected)) != 1 {
		t.Fatal("engine-detected emergency should dispatch")
	}
	// the conversational reply still goes out after the dispatch
	if len(env.sender.ofType(EventAIResponse)) != 1 {
		t.Fatal("reply should follow the emergency acknowledgment")
	}
	if env.session.State() != StateEmergencyActive {
		t.Errorf("expected emergency-active, got %s", env.session.State())
	}
}

func TestTurnCompletionHeuristic(t *testing.T) {
	env := newTestSession(t, SessionConfig{}, defaultOpts())

	env.session.HandleTextInput("hello there")
	if env.engine.callCount() != 0 {
		t.Fatal("short unpunctuated text must not complete a turn")
	}
	if env.session.Transcript() != "hello there" {
		t.Errorf("transcript %q", env.session.Transcript())
	}

	env.session.HandleTextInput("how are you?")
	if env.engine.callCount() != 1 {
		t.Fatal("trailing question mark should complete the turn")
	}
	if env.engine.lastInput() != "hello there how are you?" {
		t.Errorf("turn text %q", env.engine.lastInput())
	}

	long := strings.Repeat("words without any punctuation ", 3) // 90 chars
	env.session.HandleTextInput(long)
	if env.engine.callCount() != 2 {
		t.Error("text over the length limit should complete the turn")
	}
}

func TestEngineFailureFallsBack(t *testing.T) {
	env := newTestSession(t, SessionConfig{}, defaultOpts())
	env.engine.err = context.DeadlineExceeded

	env.session.HandleTextInput("Draft a will for me.")

	responses := env.sender.ofType(EventAIResponse)
	if len(responses) != 1 {
		t.Fatalf("expected the fallback response, got %d responses", len(responses))
	}
	resp := responses[0].Payload.(AIResponsePayload)
	if resp.Text != fallbackUtterance || resp.Intent != "fallback" {
		t.Errorf("unexpected fallback payload: %+v", resp)
	}
	if len(resp.Audio) == 0 {
		t.Error("fallback should still carry synthesized audio")
	}
	if env.session.IsActive() != true {
		t.Error("session must survive an engine failure")
	}
}

func TestSynthesisFailureSendsTextOnly(t *testing.T) {
	env := newTestSession(t, SessionConfig{}, defaultOpts())
	env.synthesizer.err = context.DeadlineExceeded

	env.session.HandleTextInput("Hello.")

	responses := env.sender.ofType(EventAIResponse)
	if len(responses) != 1 {
		t.Fatalf("expected one response, got %d", len(responses))
	}
	resp := responses[0].Payload.(AIResponsePayload)
	if resp.Text != "Of course." || resp.Audio != nil {
		t.Errorf("expected text-only response, got %+v", resp)
	}
}

func TestClassifierFailureDropsFlush(t *testing.T) {
	env := newTestSession(t, SessionConfig{FlushBytes: 1024, FlushInterval: time.Hour}, defaultOpts())
	env.classifier.err = context.DeadlineExceeded

	env.session.HandleAudioChunk(bytes.Repeat([]byte{0x01}, 2048), 1)

	if env.transcriber.callCount() != 0 {
		t.Error("dropped flush must not reach transcription")
	}
	if !env.session.IsActive() {
		t.Error("session must survive a dropped flush")
	}
	if env.session.Telemetry().Snapshot().DroppedFlushes != 1 {
		t.Error("dropped flush not counted")
	}
	// the next flush proceeds normally once the adapter recovers
	env.classifier.err = nil
	env.session.HandleAudioChunk(bytes.Repeat([]byte{0x01}, 2048), 2)
	if env.transcriber.callCount() != 1 {
		t.Error("recovered flush should transcribe")
	}
}

func TestEndDuringOutstandingAdapterCall(t *testing.T) {
	env := newTestSession(t, SessionConfig{AdapterTimeout: time.Minute}, defaultOpts())
	env.engine.waitOnCtx = true
	env.engine.reply = convo.Reply{Text: "too late"}

	done := make(chan struct{})
	go func() {
		env.session.HandleTextInput("Hello.")
		close(done)
	}()

	// wait for the turn to reach the engine, then end the session
	for i := 0; i < 100 && env.engine.callCount() == 0; i++ {
		time.Sleep(time.Millisecond)
	}
	env.session.End()
	<-done

	if len(env.sender.ofType(EventAIResponse)) != 0 {
		t.Error("response delivered after the session ended")
	}
	if got := env.sender.ofType(EventSessionEnded); len(got) != 1 {
		t.Errorf("expected one session-ended event, got %d", len(got))
	}
}

func TestEndIsIdempotentAndTerminal(t *testing.T) {
	env := newTestSession(t, SessionConfig{}, defaultOpts())

	env.session.End()
	env.session.End()

	if got := env.sender.ofType(EventSessionEnded); len(got) != 1 {
		t.Errorf("expected one session-ended event, got %d", len(got))
	}
	if env.session.State() != StateEnded {
		t.Errorf("expected ended, got %s", env.session.State())
	}

	// events after end are ignored
	env.session.HandleAudioChunk([]byte("late"), 9)
	env.session.HandleTextInput("anyone there?")
	if len(env.sender.ofType(EventChunkReceived)) != 0 || env.engine.callCount() != 0 {
		t.Error("ended session processed an event")
	}
}

func TestQualityReportFeedsSummary(t *testing.T) {
	env := newTestSession(t, SessionConfig{}, defaultOpts())

	env.session.ApplyQualityReport(QualityReportPayload{AudioQuality: 0.8, ConnectionStability: 0.95})
	env.session.HandleTextInput("Hello.")

	snap := env.session.Telemetry().Snapshot()
	if snap.AudioQuality != 0.8 || snap.ConnectionStability != 0.95 {
		t.Errorf("quality report not applied: %+v", snap)
	}
	if snap.TurnCount != 1 {
		t.Errorf("expected one turn, got %d", snap.TurnCount)
	}
	if snap.AvgLatencyMs < 0 {
		t.Errorf("negative latency: %+v", snap)
	}
}

func TestChangeLanguageAppliesToAdapterCalls(t *testing.T) {
	env := newTestSession(t, SessionConfig{}, defaultOpts())

	env.session.ChangeLanguage("zh")
	if env.session.Language() != "zh" {
		t.Fatalf("language %q", env.session.Language())
	}
	env.session.ChangeLanguage("")
	if env.session.Language() != "zh" {
		t.Error("empty language must be ignored")
	}
}
