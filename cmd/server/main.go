package main

import (
	"log"

	"studytracker/backend/internal/config"
	"studytracker/backend/internal/db"
	"studytracker/backend/internal/handler"
	"studytracker/backend/internal/repository"
	"studytracker/backend/internal/router"
	"studytracker/backend/internal/service"
	"studytracker/backend/migrations"
)

func main() {
	cfg := config.Load()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, migrations.FS); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	userRepo := repository.NewUserRepository(database)
	dayRepo := repository.NewDayRepository(database)
	timerRepo := repository.NewTimerRepository(database)

	authService := service.NewAuthService(userRepo, dayRepo, cfg)
	progressService := service.NewProgressService(dayRepo, cfg)
	timerService := service.NewTimerService(timerRepo, dayRepo, progressService)
	trackerService := service.NewTrackerService(dayRepo, timerRepo, progressService, cfg)

	authHandler := handler.NewAuthHandler(authService)
	timerHandler := handler.NewTimerHandler(timerService)
	trackerHandler := handler.NewTrackerHandler(trackerService)

	engine := router.New(authService, authHandler, timerHandler, trackerHandler, cfg.CORSOrigins)
	log.Printf("backend listening on :%s", cfg.Port)
	if err := engine.Run(":" + cfg.Port); err != nil {
		log.Fatalf("run server: %v", err)
	}
}
