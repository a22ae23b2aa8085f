package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studytracker/backend/internal/middleware"
	"studytracker/backend/internal/service"
)

type TimerHandler struct {
	timerService *service.TimerService
}

type startTimerRequest struct {
	DayNumber int    `json:"dayNumber"`
	Category  string `json:"category"`
}

func NewTimerHandler(timerService *service.TimerService) *TimerHandler {
	return &TimerHandler{timerService: timerService}
}

func (h *TimerHandler) GetCurrent(c *gin.Context) {
	userID := middleware.UserID(c)
	status, apiErr := h.timerService.GetCurrent(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *TimerHandler) Start(c *gin.Context) {
	var req startTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	userID := middleware.UserID(c)
	category := strings.ToLower(strings.TrimSpace(req.Category))
	timer, apiErr := h.timerService.Start(c.Request.Context(), userID, req.DayNumber, category)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "timer started", "timer": timer})
}

func (h *TimerHandler) Pause(c *gin.Context) {
	userID := middleware.UserID(c)
	timer, apiErr := h.timerService.Pause(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "timer paused", "timer": timer})
}

func (h *TimerHandler) Stop(c *gin.Context) {
	userID := middleware.UserID(c)
	result, apiErr := h.timerService.Stop(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "timer stopped and saved",
		"savedSeconds": result.SavedSeconds,
		"day":          result.Day,
	})
}
