package service

import (
	"context"
	"database/sql"
	"time"

	"studytracker/backend/internal/apperrors"
	"studytracker/backend/internal/config"
	"studytracker/backend/internal/model"
	"studytracker/backend/internal/repository"
)

// ProgressState is the answer to "which day is editable right now". It is
// recomputed from the store on every call; there is no cached cursor to drift.
type ProgressState struct {
	ActiveDayNumber *int `json:"activeDayNumber"`
	AllCompleted    bool `json:"allCompleted"`
}

type ProgressService struct {
	dayRepo *repository.DayRepository
	cfg     config.Config
}

func NewProgressService(dayRepo *repository.DayRepository, cfg config.Config) *ProgressService {
	return &ProgressService{dayRepo: dayRepo, cfg: cfg}
}

func (s *ProgressService) ActiveDay(ctx context.Context, userID string, now time.Time) (*ProgressState, *apperrors.APIError) {
	switch s.cfg.CursorPolicy {
	case config.CursorPolicyCalendar:
		completed, err := s.dayRepo.CountCompleted(ctx, userID)
		if err != nil {
			return nil, apperrors.Internal("failed to read progress")
		}
		return s.calendarState(completed, now), nil
	default:
		day, err := s.dayRepo.FirstIncompleteDay(ctx, userID)
		return completionState(day, err)
	}
}

// ActiveDayTx re-resolves the cursor inside a caller's transaction so that
// state-changing operations validate against the same snapshot they mutate.
func (s *ProgressService) ActiveDayTx(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (*ProgressState, *apperrors.APIError) {
	switch s.cfg.CursorPolicy {
	case config.CursorPolicyCalendar:
		completed, err := s.dayRepo.CountCompletedTx(ctx, tx, userID)
		if err != nil {
			return nil, apperrors.Internal("failed to read progress")
		}
		return s.calendarState(completed, now), nil
	default:
		day, err := s.dayRepo.FirstIncompleteDayTx(ctx, tx, userID)
		return completionState(day, err)
	}
}

func completionState(day int, err error) (*ProgressState, *apperrors.APIError) {
	if err == repository.ErrNotFound {
		return &ProgressState{ActiveDayNumber: nil, AllCompleted: true}, nil
	}
	if err != nil {
		return nil, apperrors.Internal("failed to read progress")
	}
	return &ProgressState{ActiveDayNumber: &day}, nil
}

func (s *ProgressService) calendarState(completedCount int, now time.Time) *ProgressState {
	if completedCount >= s.cfg.TotalDays {
		return &ProgressState{ActiveDayNumber: nil, AllCompleted: true}
	}
	day := model.CalendarDayNumber(s.cfg.StartDate, now, s.cfg.TotalDays)
	return &ProgressState{ActiveDayNumber: &day}
}
