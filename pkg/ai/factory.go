package ai

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "gemini", "ollama", "auto" or "none"

	GeminiAPIKey string
	GeminiModel  string

	// OllamaBaseURL/OllamaModel are used when no getters are supplied
	OllamaBaseURL   string
	OllamaModel     string
	OllamaBaseURLFn func() string
	OllamaModelFn   func() string
}

// NewProvider builds the configured provider chain.
// A nil Provider with a nil error means no LLM is configured; callers take
// their rule-based paths in that case.
func NewProvider(ctx context.Context, cfg Config, logger *zap.Logger) (Provider, error) {
	log := logger.Named("ai")

	var gemini Provider
	if cfg.GeminiAPIKey != "" {
		g, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		gemini = g
	}

	var ollama Provider
	if cfg.OllamaBaseURLFn != nil && cfg.OllamaModelFn != nil {
		ollama = NewOllamaProviderWithGetters(cfg.OllamaBaseURLFn, cfg.OllamaModelFn)
	} else if cfg.OllamaBaseURL != "" {
		ollama = NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel)
	}

	switch ProviderType(strings.ToLower(string(cfg.Provider))) {
	case ProviderNone:
		log.Info("LLM disabled, rule-based fallbacks only")
		return nil, nil
	case ProviderGemini:
		if gemini == nil {
			log.Warn("gemini selected but GEMINI_API_KEY is empty, rule-based fallbacks only")
			return nil, nil
		}
		return NewFallbackProvider(logger, gemini, ollama), nil
	case ProviderOllama:
		if ollama == nil {
			ollama = NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel)
		}
		return NewFallbackProvider(logger, ollama, gemini), nil
	default:
		if gemini == nil && ollama == nil {
			log.Info("no LLM credentials configured, rule-based fallbacks only")
			return nil, nil
		}
		return NewFallbackProvider(logger, gemini, ollama), nil
	}
}
