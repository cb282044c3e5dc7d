package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"taskflow-backend/pkg/ai"

	"github.com/gin-gonic/gin"
)

type RuntimeConfig struct {
	OllamaBaseURL string `json:"ollama_base_url"`
	OllamaModel   string `json:"ollama_model"`
}

// SettingsHandler serves the Ollama settings that can change without a restart.
// The AI provider reads the current values through OllamaBaseURL and OllamaModel.
type SettingsHandler struct {
	mu      sync.RWMutex
	current RuntimeConfig
}

func NewSettingsHandler(ollamaBaseURL, ollamaModel string) *SettingsHandler {
	return &SettingsHandler{current: RuntimeConfig{OllamaBaseURL: ollamaBaseURL, OllamaModel: ollamaModel}}
}

func (h *SettingsHandler) snapshot() RuntimeConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *SettingsHandler) OllamaBaseURL() string { return h.snapshot().OllamaBaseURL }

func (h *SettingsHandler) OllamaModel() string { return h.snapshot().OllamaModel }

type updateOllamaRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required,url"`
	OllamaModel   string `json:"ollama_model"`
}

// GetOllamaSettings returns the live Ollama settings
// GET /api/settings/ollama
func (h *SettingsHandler) GetOllamaSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.snapshot())
}

// UpdateOllamaSettings swaps the Ollama endpoint; an empty model keeps the current one
// PUT /api/settings/ollama
func (h *SettingsHandler) UpdateOllamaSettings(c *gin.Context) {
	var req updateOllamaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "INVALID_INPUT"})
		return
	}

	h.mu.Lock()
	h.current.OllamaBaseURL = strings.TrimRight(req.OllamaBaseURL, "/")
	if req.OllamaModel != "" {
		h.current.OllamaModel = req.OllamaModel
	}
	updated := h.current
	h.mu.Unlock()

	c.JSON(http.StatusOK, updated)
}

// TestOllamaConnection checks that an Ollama server answers and lists its models
// POST /api/settings/ollama/test
func (h *SettingsHandler) TestOllamaConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	// body is optional
	_ = c.ShouldBindJSON(&req)
	if req.OllamaBaseURL == "" {
		req.OllamaBaseURL = h.OllamaBaseURL()
	}
	if req.OllamaBaseURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"connected": false, "error": "no Ollama URL configured", "code": "INVALID_INPUT"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	models, err := ai.NewOllamaProvider(req.OllamaBaseURL, h.OllamaModel()).Ping(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":       true,
		"ollama_base_url": req.OllamaBaseURL,
		"models":          models,
	})
}
