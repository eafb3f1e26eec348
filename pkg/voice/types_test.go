package voice

import (
	"context"
	"testing"
	"time"

	"github.com/lexaid-ai/lexaid/pkg/cache"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"text-input","payload":{"text":"hi"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != EventTextInput {
		t.Errorf("type %q", env.Type)
	}
	var payload TextInputPayload
	if err := env.Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Text != "hi" {
		t.Errorf("text %q", payload.Text)
	}

	if _, err := DecodeEnvelope([]byte(`{"payload":{}}`)); err == nil {
		t.Error("missing type must be rejected")
	}
	if _, err := DecodeEnvelope([]byte(`not json`)); err == nil {
		t.Error("malformed frame must be rejected")
	}
}

func TestCachedLocationSource(t *testing.T) {
	store := cache.NewLocalCache(cache.LocalConfig{
		DefaultExpiration: time.Minute,
		CleanupInterval:   time.Minute,
	})
	defer store.Close()

	source := NewCachedLocationSource(store)
	ctx := context.Background()

	if got := source.LastKnown(ctx, 9); got != "" {
		t.Errorf("expected empty location, got %q", got)
	}

	source.Update(ctx, 9, LocationUpdatePayload{Lat: 51.50735, Lon: -0.12776, Label: "Trafalgar Square"})
	got := source.LastKnown(ctx, 9)
	if got != "Trafalgar Square (51.50735,-0.12776)" {
		t.Errorf("location %q", got)
	}

	// another user's location stays independent
	if other := source.LastKnown(ctx, 10); other != "" {
		t.Errorf("expected empty location for other user, got %q", other)
	}
}
