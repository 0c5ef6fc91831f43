package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapentity/pkg/core"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory to the vendor table.
// Called by provider implementations in their init() functions.
func Register(vendor string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(vendor)] = factory
}

// Get retrieves a provider factory by vendor name.
func Get(vendor string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(vendor)]
	return f, ok
}

// NewProvider creates a provider instance for cfg.Vendor.
// A nil cfg.Logger uses a discard logger.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Vendor == "" {
		return nil, &core.ConfigError{Subject: cfg.Identity, Reason: "provider vendor not specified"}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	factory, ok := Get(cfg.Vendor)
	if !ok {
		return nil, &UnknownProviderError{
			Vendor:    cfg.Vendor,
			Available: ListProviders(),
		}
	}
	return factory(cfg)
}

// ListProviders returns all registered vendor names (sorted).
func ListProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a vendor is registered.
func IsRegistered(vendor string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[strings.ToLower(vendor)]
	return ok
}

// UnknownProviderError is returned when an unknown vendor is requested.
type UnknownProviderError struct {
	Vendor    string
	Available []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q\nAvailable providers: %v\nHint: Check the vendor of your source in leapentity.yaml", e.Vendor, e.Available)
}

// Is makes errors.Is(err, core.ErrConfiguration) match.
func (e *UnknownProviderError) Is(target error) bool {
	return target == core.ErrConfiguration
}
