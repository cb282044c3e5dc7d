package delivery

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"taskflow-backend/internal/calendar/domain"
	"taskflow-backend/internal/calendar/repository"
	"taskflow-backend/internal/calendar/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CalendarHandler handles calendar connection, mirror and webhook requests
type CalendarHandler struct {
	calendar    usecase.ConnectionUsecase
	webhooks    *usecase.WebhookManager
	frontendURL string
	logger      *zap.Logger
}

func NewCalendarHandler(calendar usecase.ConnectionUsecase, webhooks *usecase.WebhookManager, frontendURL string, logger *zap.Logger) *CalendarHandler {
	return &CalendarHandler{
		calendar:    calendar,
		webhooks:    webhooks,
		frontendURL: frontendURL,
		logger:      logger.Named("calendar-http"),
	}
}

// Connect returns the consent URL
// GET /api/calendar/connect
func (h *CalendarHandler) Connect(c *gin.Context) {
	authURL, err := h.calendar.ConnectURL(c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": authURL})
}

// Callback finishes the OAuth flow and redirects back to the frontend
// GET /api/calendar/callback?state=...&code=...
func (h *CalendarHandler) Callback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		c.Redirect(http.StatusFound, h.redirect("error", reason))
		return
	}

	userID, err := h.calendar.HandleCallback(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		h.logger.Warn("oauth callback failed", zap.Error(err))
		c.Redirect(http.StatusFound, h.redirect("error", err.Error()))
		return
	}
	h.logger.Debug("oauth callback done", zap.String("owner_id", userID))
	c.Redirect(http.StatusFound, h.redirect("connected", ""))
}

func (h *CalendarHandler) redirect(result, reason string) string {
	q := url.Values{}
	q.Set("calendar", result)
	if reason != "" {
		q.Set("reason", reason)
	}
	return h.frontendURL + "/settings?" + q.Encode()
}

// Sync runs an incremental sync for the caller
// POST /api/calendar/sync
func (h *CalendarHandler) Sync(c *gin.Context) {
	res, err := h.calendar.Sync(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetEvents lists mirrored events
// GET /api/calendar/events?from=&to=&meetings_only=true&include_cancelled=false
func (h *CalendarHandler) GetEvents(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "INVALID_INPUT"})
		return
	}

	events, err := h.calendar.ListEvents(c.GetString("userID"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if events == nil {
		events = []*domain.CalendarEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// ExportICS downloads the mirror as an iCalendar file
// GET /api/calendar/events.ics
func (h *CalendarHandler) ExportICS(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "INVALID_INPUT"})
		return
	}

	body, err := h.calendar.ExportICS(c.GetString("userID"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="calendar.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", body)
}

// Status reports the caller's connection
// GET /api/calendar/status
func (h *CalendarHandler) Status(c *gin.Context) {
	status, err := h.calendar.Status(c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Disconnect removes the caller's calendar connection
// DELETE /api/calendar/connection
func (h *CalendarHandler) Disconnect(c *gin.Context) {
	if err := h.calendar.Disconnect(c.Request.Context(), c.GetString("userID")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Calendar disconnected"})
}

// Webhook receives provider push notifications. Processing happens out of band.
// POST /api/calendar/webhook
func (h *CalendarHandler) Webhook(c *gin.Context) {
	channelID := c.GetHeader("X-Goog-Channel-ID")
	state := c.GetHeader("X-Goog-Resource-State")
	if channelID == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing channel headers", "code": "INVALID_INPUT"})
		return
	}

	err := h.webhooks.Accept(c.Request.Context(), channelID, state, c.GetHeader("X-Goog-Channel-Token"))
	if errors.Is(err, usecase.ErrInvalidChannelToken) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		// still acknowledged: the periodic sync picks up what this notification announced
		h.logger.Warn("dispatch notification", zap.String("channel_id", channelID), zap.Error(err))
	}
	c.Status(http.StatusOK)
}

func parseFilter(c *gin.Context) (repository.EventFilter, error) {
	var filter repository.EventFilter
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("from must be RFC3339")
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("to must be RFC3339")
		}
		filter.To = &t
	}
	filter.MeetingsOnly, _ = strconv.ParseBool(c.DefaultQuery("meetings_only", "false"))
	filter.IncludeCancelled, _ = strconv.ParseBool(c.DefaultQuery("include_cancelled", "false"))
	return filter, nil
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrNotConnected):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "NOT_CONNECTED"})
	case errors.Is(err, usecase.ErrCredentialRevoked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "CREDENTIAL_REVOKED"})
	case errors.Is(err, usecase.ErrProviderNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "code": "NOT_CONFIGURED"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
