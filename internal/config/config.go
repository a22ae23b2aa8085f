package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Cursor policies decide which single day is editable. Exactly one applies per
// deployment; mixing them yields contradictory answers about the open day.
const (
	CursorPolicyCompletion = "completion"
	CursorPolicyCalendar   = "calendar"
)

type Config struct {
	Port         string
	DBPath       string
	JWTSecret    string
	TokenTTL     time.Duration
	CORSOrigins  []string
	StartDate    time.Time
	TotalDays    int
	CursorPolicy string
}

func Load() Config {
	return Config{
		Port:         getEnv("PORT", "8080"),
		DBPath:       getEnv("DB_PATH", "./data/studytracker.db"),
		JWTSecret:    getEnv("JWT_SECRET", "change-this-secret"),
		TokenTTL:     time.Duration(getEnvInt("TOKEN_TTL_HOURS", 72)) * time.Hour,
		CORSOrigins:  getEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
		StartDate:    getEnvDate("TRACKER_START_DATE", "2026-02-14"),
		TotalDays:    getEnvInt("TRACKER_TOTAL_DAYS", 180),
		CursorPolicy: getEnvPolicy("CURSOR_POLICY", CursorPolicyCompletion),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func getEnvDate(key, fallback string) time.Time {
	value := os.Getenv(key)
	if value == "" {
		value = fallback
	}

	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		parsed, _ = time.Parse("2006-01-02", fallback)
	}
	return parsed.UTC()
}

func getEnvPolicy(key, fallback string) string {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == CursorPolicyCompletion || value == CursorPolicyCalendar {
		return value
	}
	return fallback
}
