package ai

import (
	"context"
)

// Provider is the LLM capability used by the planner and synthesizer.
// Implementations return raw completion text; callers parse it per call site.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
	ProviderNone   ProviderType = "none"
)
