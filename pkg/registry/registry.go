// Package registry memoizes one provider per data-source identity and primes
// its schema cache on first use.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/leapentity/pkg/provider"
	"github.com/leapstack-labs/leapentity/pkg/schemacache"
	"github.com/leapstack-labs/leapentity/pkg/telemetry"
)

// Registry owns the providers of a process. Create one at the composition
// root and share it between data contexts.
type Registry struct {
	logger    *slog.Logger
	publisher *telemetry.Publisher
	snapshot  *schemacache.File
	lookup    func(vendor string) (provider.Factory, bool)

	mu        sync.RWMutex
	providers map[string]provider.Provider
	group     singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger handed to providers.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPublisher sets the telemetry publisher handed to providers.
func WithPublisher(p *telemetry.Publisher) Option {
	return func(r *Registry) {
		r.publisher = p
	}
}

// WithSnapshot restores schema caches from f when providers are created.
// Restored caches are offline and are not primed.
func WithSnapshot(f *schemacache.File) Option {
	return func(r *Registry) {
		r.snapshot = f
	}
}

// WithFactoryLookup replaces the vendor table lookup.
func WithFactoryLookup(lookup func(vendor string) (provider.Factory, bool)) Option {
	return func(r *Registry) {
		if lookup != nil {
			r.lookup = lookup
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger:    slog.New(slog.DiscardHandler),
		lookup:    provider.Get,
		providers: make(map[string]provider.Provider),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the provider for id, constructing and priming it on
// first use. Concurrent first calls for one identity share a single
// construction. A failed construction is not remembered, so a later call
// retries.
//
// The shared construction runs detached from any one caller's cancellation.
// A caller whose ctx ends stops waiting and gets ctx.Err(), while priming
// continues for the callers still waiting and for later calls.
func (r *Registry) GetOrCreate(ctx context.Context, id Identity, connString string) (provider.Provider, error) {
	key := id.Key()
	if p, ok := r.Get(key); ok {
		return p, nil
	}

	primeCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		if p, ok := r.Get(key); ok {
			return p, nil
		}
		p, err := r.create(primeCtx, id, key, connString)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.providers[key] = p
		r.mu.Unlock()
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(provider.Provider), nil
	}
}

// Get returns the live provider for key.
func (r *Registry) Get(key string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[key]
	return p, ok
}

func (r *Registry) create(ctx context.Context, id Identity, key, connString string) (provider.Provider, error) {
	factory, ok := r.lookup(id.Vendor)
	if !ok {
		return nil, &provider.UnknownProviderError{
			Vendor:    id.Vendor,
			Available: provider.ListProviders(),
		}
	}

	p, err := factory(provider.Config{
		Identity:  key,
		Vendor:    id.Vendor,
		Case:      id.Case,
		Options:   id.Options,
		Params:    id.Params,
		Logger:    r.logger.With("identity", key),
		Publisher: r.publisher,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", id.Vendor, err)
	}

	cache := p.Schema()
	if r.snapshot != nil {
		if s, ok := r.snapshot.Providers[key]; ok {
			cache.Restore(s)
			cache.SetOffline(true)
			r.logger.Debug("restored schema snapshot", "identity", key, "tables", len(s.Tables))
		}
	}

	if !cache.IsOffline() {
		if err := r.prime(ctx, p, connString); err != nil {
			_ = p.Close()
			return nil, err
		}
	}
	return p, nil
}

// prime runs one type-mapping pass and one table pass on a fresh connection.
func (r *Registry) prime(ctx context.Context, p provider.Provider, connString string) error {
	conn, err := p.Open(ctx, connString)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Release(conn); err != nil {
			r.logger.Warn("failed to release priming connection", "error", err)
		}
	}()

	mappings, err := p.TypeMappings(ctx, conn)
	if err != nil {
		return fmt.Errorf("failed to prime type mappings: %w", err)
	}
	tables, err := p.Tables(ctx, conn)
	if err != nil {
		return fmt.Errorf("failed to prime tables: %w", err)
	}
	r.logger.Debug("primed schema cache",
		"identity", p.Identity(),
		"type_mappings", len(mappings),
		"tables", len(tables))
	return nil
}

// Providers returns the live providers ordered by identity key.
func (r *Registry) Providers() []provider.Provider {
	r.mu.RLock()
	keys := make([]string, 0, len(r.providers))
	for k := range r.providers {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)

	out := make([]provider.Provider, 0, len(keys))
	for _, k := range keys {
		if p, ok := r.Get(k); ok {
			out = append(out, p)
		}
	}
	return out
}

// Snapshot collects the schema cache of every live provider. Saved caches
// are marked offline.
func (r *Registry) Snapshot() *schemacache.File {
	f := schemacache.NewFile()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key, p := range r.providers {
		s := p.Schema().Snapshot()
		s.Offline = true
		f.Providers[key] = s
	}
	return f
}

// SaveSchema writes the schema cache of every live provider to path. The
// format follows the file extension.
func (r *Registry) SaveSchema(path string) error {
	f := r.Snapshot()
	if err := schemacache.Save(path, f); err != nil {
		return fmt.Errorf("failed to save schema: %w", err)
	}
	r.logger.Debug("saved schema snapshot", "path", path, "providers", len(f.Providers))
	return nil
}

// Close closes every provider and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	providers := r.providers
	r.providers = make(map[string]provider.Provider)
	r.mu.Unlock()

	var g errgroup.Group
	for key, p := range providers {
		g.Go(func() error {
			if err := p.Close(); err != nil {
				return fmt.Errorf("failed to close provider %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}
