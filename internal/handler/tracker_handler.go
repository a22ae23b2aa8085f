package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"studytracker/backend/internal/apperrors"
	"studytracker/backend/internal/export"
	"studytracker/backend/internal/middleware"
	"studytracker/backend/internal/service"
)

type TrackerHandler struct {
	trackerService *service.TrackerService
}

func NewTrackerHandler(trackerService *service.TrackerService) *TrackerHandler {
	return &TrackerHandler{trackerService: trackerService}
}

func (h *TrackerHandler) GetProgress(c *gin.Context) {
	userID := middleware.UserID(c)
	state, apiErr := h.trackerService.GetProgress(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *TrackerHandler) GetDashboard(c *gin.Context) {
	userID := middleware.UserID(c)
	dashboard, apiErr := h.trackerService.GetDashboard(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *TrackerHandler) GetAnalytics(c *gin.Context) {
	userID := middleware.UserID(c)
	analytics, apiErr := h.trackerService.GetAnalytics(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analytics": analytics})
}

func (h *TrackerHandler) GetDay(c *gin.Context) {
	dayNumber, ok := dayNumberParam(c)
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	access, apiErr := h.trackerService.GetDay(c.Request.Context(), userID, dayNumber)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"day": access.Day,
		"access": gin.H{
			"mode":            access.Mode,
			"activeDayNumber": access.ActiveDayNumber,
		},
	})
}

func (h *TrackerHandler) UpdateDay(c *gin.Context) {
	dayNumber, ok := dayNumberParam(c)
	if !ok {
		return
	}

	edits, ok := bindDayEdits(c)
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	day, apiErr := h.trackerService.UpdateDay(c.Request.Context(), userID, dayNumber, edits)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "day updated successfully", "day": day})
}

func (h *TrackerHandler) FinalizeDay(c *gin.Context) {
	dayNumber, ok := dayNumberParam(c)
	if !ok {
		return
	}

	edits, ok := bindDayEdits(c)
	if !ok {
		return
	}

	userID := middleware.UserID(c)
	result, apiErr := h.trackerService.FinalizeDay(c.Request.Context(), userID, dayNumber, edits)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TrackerHandler) Export(c *gin.Context) {
	userID := middleware.UserID(c)
	dashboard, apiErr := h.trackerService.GetDashboard(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="studytracker.csv"`)
		if err := export.ToCSV(c.Writer, dashboard.Days); err != nil {
			writeError(c, apperrors.Internal("failed to export csv"))
		}
	case "json":
		c.Header("Content-Type", "application/json")
		c.Header("Content-Disposition", `attachment; filename="studytracker.json"`)
		if err := export.ToJSON(c.Writer, dashboard.Days, time.Now()); err != nil {
			writeError(c, apperrors.Internal("failed to export json"))
		}
	default:
		writeError(c, apperrors.InvalidArgument("format must be json or csv"))
	}
}

func dayNumberParam(c *gin.Context) (int, bool) {
	dayNumber, err := strconv.Atoi(c.Param("dayNumber"))
	if err != nil || dayNumber < 1 {
		writeError(c, apperrors.InvalidArgument("day number must be a positive integer"))
		return 0, false
	}
	return dayNumber, true
}

func bindDayEdits(c *gin.Context) (service.DayEdits, bool) {
	var edits service.DayEdits
	if err := c.ShouldBindJSON(&edits); err != nil {
		writeInvalidJSON(c)
		return service.DayEdits{}, false
	}
	return edits, true
}
