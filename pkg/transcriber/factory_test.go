package transcriber

import (
	"testing"
)

func TestFactoryCreate(t *testing.T) {
	f := NewFactory()

	svc, err := f.Create(Config{Vendor: VendorOpenAI, APIKey: "test"})
	if err != nil {
		t.Fatalf("openai creator failed: %v", err)
	}
	if _, ok := svc.(*OpenAIService); !ok {
		t.Errorf("expected *OpenAIService, got %T", svc)
	}

	if _, err := f.Create(Config{Vendor: VendorHTTP}); err == nil {
		t.Error("http vendor without base URL should fail")
	}

	if _, err := f.Create(Config{Vendor: "nope"}); err == nil {
		t.Error("unknown vendor should fail")
	}
}

func TestFactoryRegisterCreator(t *testing.T) {
	f := NewFactory()
	f.RegisterCreator("custom", func(cfg Config) (Service, error) {
		return NewOpenAIService(cfg), nil
	})

	if _, err := f.Create(Config{Vendor: "custom"}); err != nil {
		t.Fatalf("custom creator failed: %v", err)
	}
	if len(f.SupportedVendors()) != 3 {
		t.Errorf("expected 3 vendors, got %d", len(f.SupportedVendors()))
	}
}
