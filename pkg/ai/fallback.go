package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
)

// ErrNoProvider is returned when no LLM provider is configured.
var ErrNoProvider = errors.New("no AI provider available")

// FallbackProvider tries each provider in order and returns the first success.
type FallbackProvider struct {
	providers []Provider
	logger    *zap.Logger
}

// NewFallbackProvider builds an ordered chain. Nil providers are skipped.
func NewFallbackProvider(logger *zap.Logger, providers ...Provider) *FallbackProvider {
	chain := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			chain = append(chain, p)
		}
	}
	return &FallbackProvider{providers: chain, logger: logger.Named("ai")}
}

func (f *FallbackProvider) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

func (f *FallbackProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if len(f.providers) == 0 {
		return "", ErrNoProvider
	}

	var lastErr error
	for _, p := range f.providers {
		result, err := p.Complete(ctx, prompt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		switch {
		case isConnectionError(err):
			f.logger.Warn("provider unreachable, trying next", zap.String("provider", p.Name()), zap.Error(err))
		case isQuotaError(err):
			f.logger.Warn("provider quota exhausted, trying next", zap.String("provider", p.Name()), zap.Error(err))
		default:
			f.logger.Warn("provider failed, trying next", zap.String("provider", p.Name()), zap.Error(err))
		}

		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("all AI providers failed: %w", lastErr)
}

// IsTransient reports whether err looks like a network or quota failure that
// may succeed on a later attempt.
func IsTransient(err error) bool {
	return isConnectionError(err) || isQuotaError(err)
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}

	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"resource_exhausted",
	}

	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}
