package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ResearchRun("completed", 1.5)
		m.LLMFallback("planning")
		m.CalendarSync("full", "ok")
		m.QueueRejected()
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ResearchRun("completed", 2)
	m.WebhookNotification("exists")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `taskflow_research_runs_total{outcome="completed"} 1`)
	assert.Contains(t, body, `taskflow_webhook_notifications_total{state="exists"} 1`)
}

func TestWebhookNotificationFoldsUnknownStates(t *testing.T) {
	m := New()
	m.WebhookNotification("not_exists")
	m.WebhookNotification("x-attacker-1")
	m.WebhookNotification("x-attacker-2")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `taskflow_webhook_notifications_total{state="not_exists"} 1`)
	assert.Contains(t, body, `taskflow_webhook_notifications_total{state="other"} 2`)
	assert.NotContains(t, body, "x-attacker")
}
