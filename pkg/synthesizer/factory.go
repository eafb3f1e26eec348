package synthesizer

import (
	"fmt"
	"sync"
)

// Vendor synthesis vendor type
type Vendor string

const (
	// VendorOpenAI OpenAI speech API
	VendorOpenAI Vendor = "openai"
	// VendorHTTP generic JSON-over-HTTP synthesis service
	VendorHTTP Vendor = "http"
)

// Factory creates synthesis services by vendor
type Factory struct {
	creators map[Vendor]func(Config) (Service, error)
	mu       sync.RWMutex
}

// NewFactory creates a factory with the default vendors registered
func NewFactory() *Factory {
	f := &Factory{creators: make(map[Vendor]func(Config) (Service, error))}
	f.RegisterCreator(VendorOpenAI, func(cfg Config) (Service, error) {
		return NewOpenAIService(cfg), nil
	})
	f.RegisterCreator(VendorHTTP, func(cfg Config) (Service, error) {
		return NewHTTPService(cfg)
	})
	return f
}

// RegisterCreator registers a creator function for a vendor
func (f *Factory) RegisterCreator(vendor Vendor, creator func(Config) (Service, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[vendor] = creator
}

// Create creates a Service for the configured vendor
func (f *Factory) Create(cfg Config) (Service, error) {
	f.mu.RLock()
	creator, ok := f.creators[cfg.Vendor]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported synthesis vendor: %s", cfg.Vendor)
	}
	return creator(cfg)
}
