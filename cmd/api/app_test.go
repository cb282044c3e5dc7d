package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskflow-backend/internal/testutil"
	"taskflow-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		Env:                 "test",
		JWTSecret:           "test-secret",
		JWTAccessExpiry:     15 * time.Minute,
		JWTRefreshExpiry:    time.Hour,
		FrontendURL:         "http://localhost:5173",
		GooglePubSubTopic:   "calendar-notifications",
		AIProvider:          "none",
		SearchProviders:     []string{"duckduckgo"},
		ResearchWorkers:     1,
		ResearchQueueSize:   10,
		ResearchHistoryKeep: 5,
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	db := testutil.NewDB(t, Models()...)
	app, err := NewApp(context.Background(), testConfig(), db, zap.NewNop())
	require.NoError(t, err)
	return app
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r := newTestApp(t).Router()

	rec := doJSON(t, r, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := newTestApp(t).Router()

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	r := newTestApp(t).Router()

	for _, path := range []string{"/api/tasks", "/api/meeting-prep", "/api/calendar/status", "/api/settings/ollama"} {
		rec := doJSON(t, r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRouter_CreatedTaskIsQueuedForResearch(t *testing.T) {
	app := newTestApp(t)
	r := app.Router()

	rec := doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "jane@example.com",
		"password": "secret123",
		"name":     "Jane",
		"role":     "sales",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))

	rec = doJSON(t, r, http.MethodPost, "/api/tasks", tokens.AccessToken, map[string]string{
		"title": "Research competitor pricing",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var task struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))

	// workers are not started, so the request waits in the queue and a repeat is coalesced
	assert.True(t, app.Queue.Enqueue(task.ID))
	assert.Equal(t, 1, app.Queue.Pending())

	rec = doJSON(t, r, http.MethodGet, "/api/research/tasks/"+task.ID+"/status", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/calendar/status", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"connected":false`)
}

func TestApp_StartAndClose(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, app.Start(ctx))
	assert.NotPanics(t, app.Close)
}

func TestSettingsHandler_UpdateAndTest(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3"}]}`))
	}))
	defer ollama.Close()

	h := NewSettingsHandler("", "llama3")
	r := gin.New()
	r.GET("/ollama", h.GetOllamaSettings)
	r.PUT("/ollama", h.UpdateOllamaSettings)
	r.POST("/ollama/test", h.TestOllamaConnection)

	rec := doJSON(t, r, http.MethodPost, "/ollama/test", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPut, "/ollama", "", map[string]string{"ollama_base_url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPut, "/ollama", "", map[string]string{"ollama_base_url": ollama.URL})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ollama.URL, h.OllamaBaseURL())
	assert.Equal(t, "llama3", h.OllamaModel())

	rec = doJSON(t, r, http.MethodPost, "/ollama/test", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"models":["llama3"]`)
}

func TestTopicName(t *testing.T) {
	assert.Equal(t, "calendar-notifications", topicName("projects/acme/topics/calendar-notifications"))
	assert.Equal(t, "calendar-notifications", topicName("calendar-notifications"))
}
