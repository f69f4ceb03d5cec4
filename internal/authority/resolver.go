// Package authority holds the settlement authority collaborators: a resolver
// that can be rotated at runtime and an in-process notifier that records
// the batches an authority received.
package authority

import (
	"context"
	"sync"

	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
)

// Registry resolves the settlement authority from a value that can be
// rotated at any time. Lookups always read the latest value.
type Registry struct {
	mu        sync.RWMutex
	authority string
}

// NewRegistry creates a registry. An empty authority means unset.
func NewRegistry(authority string) *Registry {
	return &Registry{authority: authority}
}

// CurrentAuthority returns the configured authority, or "" when unset.
func (r *Registry) CurrentAuthority(ctx context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.authority, nil
}

// Set rotates the authority. Passing "" unsets it.
func (r *Registry) Set(authority string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authority = authority
}

var _ interfaces.AuthorityResolver = (*Registry)(nil)
