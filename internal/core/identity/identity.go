// Package identity resolves the local author attached to new comments.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/colonyops/trunkreview/internal/core/review"
)

// DefaultPlaceholder is the author used until a provider answers.
const DefaultPlaceholder = "vs-code"

// ErrNoIdentity is returned by a provider that has nothing to offer.
var ErrNoIdentity = errors.New("no identity available")

// Provider looks up the current user.
type Provider interface {
	Identity(ctx context.Context) (review.Identity, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (review.Identity, error)

func (f ProviderFunc) Identity(ctx context.Context) (review.Identity, error) {
	return f(ctx)
}

// Chain tries each provider in order and returns the first identity found.
type Chain []Provider

func (c Chain) Identity(ctx context.Context) (review.Identity, error) {
	var errs []error
	for _, p := range c {
		id, err := p.Identity(ctx)
		if err == nil && id.Name != "" {
			return id, nil
		}
		if err == nil {
			err = ErrNoIdentity
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return review.Identity{}, ErrNoIdentity
	}
	return review.Identity{}, errors.Join(errs...)
}

// Resolver holds the identity used for new comments. It starts as a
// placeholder and is replaced once, when the provider answers. Comments
// created before that keep the placeholder.
type Resolver struct {
	provider Provider
	log      zerolog.Logger

	mu       sync.RWMutex
	current  review.Identity
	resolved bool

	once sync.Once
	done chan struct{}
	err  error
}

// NewResolver creates a resolver. A nil provider keeps the placeholder forever.
func NewResolver(placeholder review.Identity, provider Provider, logger zerolog.Logger) *Resolver {
	if placeholder.Name == "" {
		placeholder.Name = DefaultPlaceholder
	}
	return &Resolver{
		provider: provider,
		log:      logger,
		current:  placeholder,
		done:     make(chan struct{}),
	}
}

// Start runs the provider in the background. Only the first call has an effect.
func (r *Resolver) Start(ctx context.Context) {
	r.once.Do(func() {
		if r.provider == nil {
			close(r.done)
			return
		}
		go r.resolve(ctx)
	})
}

func (r *Resolver) resolve(ctx context.Context) {
	defer close(r.done)

	id, err := r.provider.Identity(ctx)
	if err != nil {
		r.err = fmt.Errorf("resolve identity: %w", err)
		r.log.Warn().Err(err).Msg("identity lookup failed, keeping placeholder")
		return
	}

	r.mu.Lock()
	r.current = id
	r.resolved = true
	r.mu.Unlock()

	r.log.Debug().Str("name", id.Name).Msg("identity resolved")
}

// Current returns the identity to attach to a new comment.
func (r *Resolver) Current() review.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Resolved reports whether a provider replaced the placeholder.
func (r *Resolver) Resolved() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved
}

// Wait blocks until the background lookup finishes and returns its error.
// Start must have been called.
func (r *Resolver) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
