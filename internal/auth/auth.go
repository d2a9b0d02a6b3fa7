// Package auth provides the "current user" for the timeline client.
package auth

import (
	"context"
	"sync"

	"github.com/blackmichael/timeline/internal/domain"
)

// Provider holds the signed-in identity. It implements domain.Authenticator
// and is safe for concurrent use.
type Provider struct {
	mu      sync.RWMutex
	current *domain.Identity
}

// NewProvider returns a provider signed in as the given user. An empty uid
// leaves it signed out.
func NewProvider(uid, displayName string) *Provider {
	p := &Provider{}
	if uid != "" {
		p.SignIn(domain.Identity{UID: uid, DisplayName: displayName})
	}
	return p
}

// CurrentUser returns a copy of the signed-in identity, or nil.
func (p *Provider) CurrentUser(context.Context) (*domain.Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil, nil
	}
	id := *p.current
	return &id, nil
}

// SignIn replaces the current identity.
func (p *Provider) SignIn(id domain.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = &id
}

// SignOut clears the current identity.
func (p *Provider) SignOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
}

var _ domain.Authenticator = (*Provider)(nil)
