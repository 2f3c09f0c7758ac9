package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a provider from its configuration section.
type Factory func(cfg map[string]any) (Provider, error)

var (
	factories       = make(map[string]Factory)
	providers       = make(map[string]Provider)
	defaultProvider Provider
	mu              sync.RWMutex
)

// RegisterFactory registers a provider constructor under an identifier.
// Adapters call this from their init function.
func RegisterFactory(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// New builds a provider by identifier using its registered factory and
// registers the instance. The first built provider becomes the default.
func New(name string, cfg map[string]any) (Provider, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	p, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("build provider %s: %w", name, err)
	}
	Register(p)
	return p, nil
}

// Register registers a provider instance.
// The first registered provider becomes the default.
func Register(p Provider) {
	mu.Lock()
	defer mu.Unlock()

	providers[p.Name()] = p
	if defaultProvider == nil {
		defaultProvider = p
	}
}

// Get returns a provider by name.
func Get(name string) (Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()

	p, ok := providers[name]
	return p, ok
}

// Default returns the default provider.
func Default() Provider {
	mu.RLock()
	defer mu.RUnlock()

	return defaultProvider
}

// SetDefault sets the default provider by name.
func SetDefault(name string) bool {
	mu.Lock()
	defer mu.Unlock()

	if p, ok := providers[name]; ok {
		defaultProvider = p
		return true
	}
	return false
}

// List returns the names of all registered providers.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Factories returns the identifiers of all registered factories.
func Factories() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears all registered providers (for testing).
// Factories survive a reset: they are process-static.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	providers = make(map[string]Provider)
	defaultProvider = nil
}
