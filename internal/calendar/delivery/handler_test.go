package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"taskflow-backend/internal/calendar/usecase"
)

type captureDispatcher struct {
	mu   sync.Mutex
	sent []string
}

func (d *captureDispatcher) Publish(_ context.Context, channelID, state string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, channelID+":"+state)
	return nil
}

func newWebhookRouter(d usecase.Dispatcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	manager := usecase.NewWebhookManager(nil, nil, nil, nil, usecase.WebhookConfig{
		Address:      "https://hooks.example.com/api/calendar/webhook",
		ChannelToken: "secret",
	}, nil, zap.NewNop())
	manager.SetDispatcher(d)

	h := NewCalendarHandler(nil, manager, "http://localhost:5173", zap.NewNop())
	r := gin.New()
	r.POST("/api/calendar/webhook", h.Webhook)
	return r
}

func notify(r *gin.Engine, channel, state, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/calendar/webhook", nil)
	if channel != "" {
		req.Header.Set("X-Goog-Channel-ID", channel)
	}
	if state != "" {
		req.Header.Set("X-Goog-Resource-State", state)
	}
	req.Header.Set("X-Goog-Channel-Token", token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookAcknowledgesAndDispatches(t *testing.T) {
	d := &captureDispatcher{}
	r := newWebhookRouter(d)

	assert.Equal(t, http.StatusOK, notify(r, "ch-1", "sync", "secret").Code)
	assert.Equal(t, http.StatusOK, notify(r, "ch-1", "exists", "secret").Code)
	assert.Equal(t, []string{"ch-1:exists"}, d.sent)
}

func TestWebhookRejectsBadRequests(t *testing.T) {
	d := &captureDispatcher{}
	r := newWebhookRouter(d)

	assert.Equal(t, http.StatusBadRequest, notify(r, "", "exists", "secret").Code)
	assert.Equal(t, http.StatusForbidden, notify(r, "ch-1", "exists", "nope").Code)
	assert.Empty(t, d.sent)
}
