package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lexaid-ai/lexaid/pkg/convo"
	"github.com/lexaid-ai/lexaid/pkg/events"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) (*Registry, *fakeEngine) {
	t.Helper()
	engine := &fakeEngine{reply: convo.Reply{Text: "ok"}}
	adapters := Adapters{
		Transcriber: &fakeTranscriber{text: "hello", confidence: 0.9},
		Classifier:  &fakeClassifier{confidence: 0.1},
		Engine:      engine,
		Synthesizer: &fakeSynthesizer{},
	}
	registry := NewRegistry(nil, events.NewEventBus(), adapters, nil,
		SessionConfig{}, time.Minute, zap.NewNop())
	return registry, engine
}

func TestRegistryRejectsUnauthenticated(t *testing.T) {
	registry, _ := newTestRegistry(t)

	if _, err := registry.Start(context.Background(), 0, defaultOpts(), &recordingSender{}); err != ErrNotAuthenticated {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestRegistryOneSessionPerUser(t *testing.T) {
	registry, _ := newTestRegistry(t)

	first, err := registry.Start(context.Background(), 7, defaultOpts(), &recordingSender{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := registry.Start(context.Background(), 7, defaultOpts(), &recordingSender{})
	if err != nil {
		t.Fatal(err)
	}

	if registry.Count() != 1 {
		t.Fatalf("expected one live session, got %d", registry.Count())
	}
	if first.IsActive() {
		t.Error("replaced session should be ended")
	}
	if !second.IsActive() {
		t.Error("replacement session should be active")
	}
	if got, ok := registry.GetByUser(7); !ok || got.ID != second.ID {
		t.Error("user index does not point at the replacement")
	}
}

func TestRegistryConcurrentStartsKeepOneSession(t *testing.T) {
	registry, _ := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.Start(context.Background(), 42, defaultOpts(), &recordingSender{})
		}()
	}
	wg.Wait()

	if registry.Count() != 1 {
		t.Fatalf("expected one live session after concurrent starts, got %d", registry.Count())
	}
	session, ok := registry.GetByUser(42)
	if !ok || !session.IsActive() {
		t.Fatal("surviving session missing or inactive")
	}
	if got, ok := registry.Get(session.ID); !ok || got != session {
		t.Error("id index out of sync with user index")
	}
}

func TestRegistryEndReleasesEngineContext(t *testing.T) {
	registry, engine := newTestRegistry(t)

	session, err := registry.Start(context.Background(), 3, defaultOpts(), &recordingSender{})
	if err != nil {
		t.Fatal(err)
	}
	registry.End(session.ID)

	if registry.Count() != 0 {
		t.Error("session still registered after End")
	}
	if session.IsActive() {
		t.Error("session still active after End")
	}
	engine.mu.Lock()
	released := len(engine.released) == 1 && engine.released[0] == session.ID
	engine.mu.Unlock()
	if !released {
		t.Error("engine context not released")
	}

	// unknown ids are a no-op
	registry.End("no-such-session")
}

func TestRegistryForceEndIdempotent(t *testing.T) {
	registry, _ := newTestRegistry(t)

	session, err := registry.Start(context.Background(), 5, defaultOpts(), &recordingSender{})
	if err != nil {
		t.Fatal(err)
	}

	if !registry.ForceEnd(session.ID) {
		t.Fatal("first ForceEnd should report removal")
	}
	if registry.ForceEnd(session.ID) {
		t.Error("second ForceEnd should be a no-op")
	}
}

func TestRegistryReapsIdleSessions(t *testing.T) {
	registry, _ := newTestRegistry(t)

	fresh, _ := registry.Start(context.Background(), 1, defaultOpts(), &recordingSender{})
	stale, _ := registry.Start(context.Background(), 2, defaultOpts(), &recordingSender{})

	stale.mu.Lock()
	stale.lastActivity = time.Now().Add(-time.Hour)
	stale.mu.Unlock()

	registry.reapIdle()

	if _, ok := registry.Get(stale.ID); ok {
		t.Error("idle session survived the sweep")
	}
	if _, ok := registry.Get(fresh.ID); !ok {
		t.Error("active session was reaped")
	}
	if stale.IsActive() {
		t.Error("reaped session still active")
	}
}
