package sitekit

import (
	"fmt"
	"sync"

	"github.com/aelwen/novelcrawler/internal/model"
)

// Site bundles one plug-in's Fetcher, Parser, and Hooks.
type Site struct {
	Fetcher Fetcher
	Parser  Parser
	Hooks   Hooks
}

// Factory builds a Site, e.g. from process-wide configuration (API base
// URLs, credentials, cache directories).
type Factory func() (Site, error)

// Registry maps a SiteKey to the factory that builds its plug-in, a
// dispatch table for per-site fetcher/parser/downloader registration.
type Registry struct {
	mu        sync.RWMutex
	factories map[model.SiteKey]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[model.SiteKey]Factory)}
}

// Register adds or replaces the factory for key.
func (r *Registry) Register(key model.SiteKey, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = f
}

// Build constructs the Site registered for key.
func (r *Registry) Build(key model.SiteKey) (Site, error) {
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return Site{}, fmt.Errorf("sitekit: no site registered for %q", key)
	}
	return f()
}

// Keys returns the registered site keys.
func (r *Registry) Keys() []model.SiteKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]model.SiteKey, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	return keys
}
