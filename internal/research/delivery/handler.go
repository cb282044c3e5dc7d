package delivery

import (
	"errors"
	"net/http"

	"taskflow-backend/internal/research/usecase"

	"github.com/gin-gonic/gin"
)

// Enqueuer accepts research requests for background processing
type Enqueuer interface {
	Enqueue(taskID string) bool
}

// ResearchHandler handles research HTTP requests
type ResearchHandler struct {
	research usecase.ResearchUsecase
	queue    Enqueuer
}

func NewResearchHandler(research usecase.ResearchUsecase, queue Enqueuer) *ResearchHandler {
	return &ResearchHandler{research: research, queue: queue}
}

type previewRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// RequestResearch queues research for a task, or runs it inline with ?wait=true
// POST /api/research/tasks/:id
func (h *ResearchHandler) RequestResearch(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")

	if err := h.research.CheckOwner(userID, taskID); err != nil {
		respondError(c, err)
		return
	}

	if c.Query("wait") == "true" {
		out := h.research.RequestResearch(c.Request.Context(), taskID)
		status := http.StatusOK
		if out.Error != nil {
			switch out.Error.Code {
			case usecase.CodeNotEligible:
				status = http.StatusUnprocessableEntity
			case usecase.CodeTaskNotFound:
				status = http.StatusNotFound
			default:
				status = http.StatusInternalServerError
			}
		}
		c.JSON(status, out)
		return
	}

	if !h.queue.Enqueue(taskID) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "research queue is full", "code": "QUEUE_FULL"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true, "task_id": taskID})
}

// GetResults returns the latest research result for a task
// GET /api/research/tasks/:id
func (h *ResearchHandler) GetResults(c *gin.Context) {
	view, err := h.research.GetResults(c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetStatus returns the pipeline status of a task
// GET /api/research/tasks/:id/status
func (h *ResearchHandler) GetStatus(c *gin.Context) {
	rec, err := h.research.GetStatus(c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Preview classifies and plans a draft task without saving anything
// POST /api/research/preview
func (h *ResearchHandler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "INVALID_INPUT"})
		return
	}

	preview, err := h.research.Preview(c.Request.Context(), c.GetString("userID"), req.Title, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": usecase.CodeTaskNotFound})
	case errors.Is(err, usecase.ErrResultNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "RESULT_NOT_FOUND"})
	case errors.Is(err, usecase.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
