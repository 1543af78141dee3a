package adapters

import (
	"fmt"
	"strings"
	"sync"

	"github.com/brettbedarf/manifestfs"
)

// Registry maps descriptor prefixes to the providers that build their backends.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]manifestfs.BackendProvider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]manifestfs.BackendProvider),
	}
}

// Register ties a provider to a descriptor prefix. The first registration of a
// prefix wins; later ones are ignored.
func (r *Registry) Register(prefix string, provider manifestfs.BackendProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[prefix]; exists {
		return
	}
	r.providers[prefix] = provider
}

// GetProvider returns the provider registered for prefix
func (r *Registry) GetProvider(prefix string) (manifestfs.BackendProvider, error) {
	r.mu.RLock()
	p, ok := r.providers[prefix]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider for %q", prefix)
	}
	return p, nil
}

// Prefixes returns the registered prefixes in no particular order
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for k := range r.providers {
		out = append(out, k)
	}
	return out
}

// Resolve splits descriptor at its first ':' and hands the remainder to the
// provider registered for the prefix. Every failure is a *manifestfs.DescriptorError.
func (r *Registry) Resolve(descriptor string) (manifestfs.Backend, error) {
	prefix, pointer, ok := strings.Cut(descriptor, ":")
	if !ok {
		return nil, &manifestfs.DescriptorError{Descriptor: descriptor, Reason: "missing ':' separator"}
	}

	provider, err := r.GetProvider(prefix)
	if err != nil {
		return nil, &manifestfs.DescriptorError{
			Descriptor: descriptor,
			Reason:     fmt.Sprintf("unknown descriptor type %q", prefix),
		}
	}

	backend, err := provider.NewBackend(pointer)
	if err != nil {
		return nil, &manifestfs.DescriptorError{Descriptor: descriptor, Reason: err.Error()}
	}
	return backend, nil
}

var _ manifestfs.BackendResolver = (*Registry)(nil)
