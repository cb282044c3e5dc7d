// Package search holds the web and knowledge search adapters used by research.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// RawResult is one hit from a search backend, in provider order.
type RawResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider searches one backend. limit is a hint; providers may return fewer.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]RawResult, error)
}

// ErrNoResults is returned by the fallback chain when every backend came back empty.
var ErrNoResults = errors.New("no search results")

// FallbackProvider queries providers in order and returns the first non-empty answer.
type FallbackProvider struct {
	providers []Provider
	logger    *zap.Logger
	onFailure func(provider string)
}

// NewFallbackProvider builds an ordered chain. Nil providers are skipped.
func NewFallbackProvider(logger *zap.Logger, providers ...Provider) *FallbackProvider {
	chain := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			chain = append(chain, p)
		}
	}
	return &FallbackProvider{providers: chain, logger: logger.Named("search")}
}

// OnFailure registers a hook called with the provider name on every failed call.
func (f *FallbackProvider) OnFailure(fn func(provider string)) {
	f.onFailure = fn
}

func (f *FallbackProvider) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return strings.Join(names, ",")
}

func (f *FallbackProvider) Search(ctx context.Context, query string, limit int) ([]RawResult, error) {
	if len(f.providers) == 0 {
		return nil, fmt.Errorf("no search providers configured")
	}

	var errs []error
	for _, p := range f.providers {
		results, err := p.Search(ctx, query, limit)
		if err != nil {
			f.logger.Warn("search provider failed", zap.String("provider", p.Name()), zap.String("query", query), zap.Error(err))
			if f.onFailure != nil {
				f.onFailure(p.Name())
			}
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(results) > 0 {
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}
			return results, nil
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, ErrNoResults
}

type ownerKey struct{}

// WithOwner scopes a search to one owner's private knowledge.
// Public web providers ignore it.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the owner set by WithOwner, if any.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}
