package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TEST_MODE", "")
	t.Setenv("SEARCH_PROVIDERS", "")
	t.Setenv("WEBHOOK_BASE_URL", "")

	cfg := Load()

	assert.Equal(t, []string{"tavily", "duckduckgo"}, cfg.SearchProviders)
	assert.Equal(t, "", cfg.WebhookAddress())
	assert.Equal(t, 15*time.Minute, cfg.Intervals().SyncFallback)
	assert.Equal(t, 20*time.Minute, cfg.Intervals().WebhookRenewal)
	assert.Equal(t, MeetingPrepWindow{MinHours: 2, MaxHours: 48}, cfg.PrepWindow())
}

func TestLoad_TestModeShortensSyncAndWidensPrepWindow(t *testing.T) {
	t.Setenv("TEST_MODE", "true")

	cfg := Load()

	assert.True(t, cfg.TestMode)
	assert.Equal(t, time.Minute, cfg.Intervals().SyncFallback)
	assert.Equal(t, MeetingPrepWindow{MinHours: 0, MaxHours: 168}, cfg.PrepWindow())
}

func TestLoad_ParsesListsAndWebhookAddress(t *testing.T) {
	t.Setenv("SEARCH_PROVIDERS", " DuckDuckGo , chroma,")
	t.Setenv("WEBHOOK_BASE_URL", "https://hooks.example.com/")
	t.Setenv("RESEARCH_WORKERS", "-3")

	cfg := Load()

	assert.Equal(t, []string{"duckduckgo", "chroma"}, cfg.SearchProviders)
	assert.Equal(t, "https://hooks.example.com/api/calendar/webhook", cfg.WebhookAddress())
	assert.Equal(t, 2, cfg.ResearchWorkers)
}
