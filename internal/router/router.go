package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studytracker/backend/internal/handler"
	"studytracker/backend/internal/middleware"
	"studytracker/backend/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	timerHandler *handler.TimerHandler,
	trackerHandler *handler.TrackerHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", middleware.Auth(authService), authHandler.Logout)
	auth.GET("/me", middleware.Auth(authService), authHandler.Me)

	timer := api.Group("/timer")
	timer.Use(middleware.Auth(authService))
	timer.GET("/current", timerHandler.GetCurrent)
	timer.POST("/start", timerHandler.Start)
	timer.POST("/pause", timerHandler.Pause)
	timer.POST("/stop", timerHandler.Stop)

	tracker := api.Group("/tracker")
	tracker.Use(middleware.Auth(authService))
	tracker.GET("/progress", trackerHandler.GetProgress)
	tracker.GET("/dashboard", trackerHandler.GetDashboard)
	tracker.GET("/analytics", trackerHandler.GetAnalytics)
	tracker.GET("/export", trackerHandler.Export)
	tracker.GET("/days/:dayNumber", trackerHandler.GetDay)
	tracker.PUT("/days/:dayNumber", trackerHandler.UpdateDay)
	tracker.POST("/days/:dayNumber/finalize", trackerHandler.FinalizeDay)

	return engine
}
