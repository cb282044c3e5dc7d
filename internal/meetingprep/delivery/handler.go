package delivery

import (
	"net/http"
	"strconv"

	"taskflow-backend/internal/meetingprep/usecase"

	"github.com/gin-gonic/gin"
)

// MeetingPrepHandler exposes upcoming meetings and the prep sweep
type MeetingPrepHandler struct {
	meetingPrep usecase.MeetingPrepUsecase
}

func NewMeetingPrepHandler(meetingPrep usecase.MeetingPrepUsecase) *MeetingPrepHandler {
	return &MeetingPrepHandler{meetingPrep: meetingPrep}
}

// GetUpcoming lists upcoming meetings with prep task and research status
// GET /api/meeting-prep?hours=48
func (h *MeetingPrepHandler) GetUpcoming(c *gin.Context) {
	hours := 0
	if v := c.Query("hours"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 24*31 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be between 1 and 744", "code": "INVALID_INPUT"})
			return
		}
		hours = parsed
	}

	items, err := h.meetingPrep.Upcoming(c.GetString("userID"), hours)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetings": items, "count": len(items)})
}

// Run runs the prep sweep for the caller now
// POST /api/meeting-prep/run
func (h *MeetingPrepHandler) Run(c *gin.Context) {
	res, err := h.meetingPrep.Run(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
