package service

import (
	"context"
	"fmt"
	"time"

	"studytracker/backend/internal/apperrors"
	"studytracker/backend/internal/model"
	"studytracker/backend/internal/repository"
)

type TimerService struct {
	timerRepo *repository.TimerRepository
	dayRepo   *repository.DayRepository
	progress  *ProgressService
}

type TimerView struct {
	DayNumber int    `json:"dayNumber"`
	Category  string `json:"category"`
	Status    string `json:"status"`
	Seconds   int    `json:"seconds"`
}

type TimerStatus struct {
	Timer           TimerView `json:"timer"`
	ActiveDayNumber *int      `json:"activeDayNumber"`
	AllCompleted    bool      `json:"allCompleted"`
}

type StopResult struct {
	SavedSeconds int     `json:"savedSeconds"`
	Day          DayView `json:"day"`
}

func NewTimerService(
	timerRepo *repository.TimerRepository,
	dayRepo *repository.DayRepository,
	progress *ProgressService,
) *TimerService {
	return &TimerService{
		timerRepo: timerRepo,
		dayRepo:   dayRepo,
		progress:  progress,
	}
}

// ComputeElapsedSeconds returns the session's effective elapsed time at now.
// A running session accrues lazily from StartedAt; nothing ticks in the
// background. A backward clock jump clamps the running delta to zero so the
// result never drops below the banked seconds.
func ComputeElapsedSeconds(session *model.TimerSession, now time.Time) int {
	if session == nil {
		return 0
	}
	if session.Status != model.StatusRunning || session.StartedAt == nil {
		return session.AccumulatedSeconds
	}
	delta := int(now.Sub(*session.StartedAt).Seconds())
	if delta < 0 {
		delta = 0
	}
	return session.AccumulatedSeconds + delta
}

func (s *TimerService) GetCurrent(ctx context.Context, userID string) (*TimerStatus, *apperrors.APIError) {
	now := time.Now().UTC()

	state, apiErr := s.progress.ActiveDay(ctx, userID, now)
	if apiErr != nil {
		return nil, apiErr
	}

	defaultDay := 1
	if state.ActiveDayNumber != nil {
		defaultDay = *state.ActiveDayNumber
	}

	session, apiErr := s.getOrCreateSession(ctx, userID, defaultDay, now)
	if apiErr != nil {
		return nil, apiErr
	}

	return &TimerStatus{
		Timer:           s.toTimerView(session, now),
		ActiveDayNumber: state.ActiveDayNumber,
		AllCompleted:    state.AllCompleted,
	}, nil
}

// Start transitions the session to running for the active day. The active
// day is re-resolved inside the transaction; a stale client cursor can only
// produce a rejection, never a wrong-day accrual.
func (s *TimerService) Start(ctx context.Context, userID string, dayNumber int, category string) (*TimerView, *apperrors.APIError) {
	if !model.IsValidCategory(category) {
		return nil, apperrors.InvalidArgument("invalid study category")
	}

	now := time.Now().UTC()
	tx, err := s.timerRepo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	state, apiErr := s.progress.ActiveDayTx(ctx, tx, userID, now)
	if apiErr != nil {
		return nil, apiErr
	}
	if state.AllCompleted {
		return nil, apperrors.Locked("all days are completed, the timer is locked")
	}
	if dayNumber != *state.ActiveDayNumber {
		return nil, apperrors.Forbidden(fmt.Sprintf("timer can only start on the active day, day %d", *state.ActiveDayNumber))
	}

	if _, err := s.dayRepo.GetDayTx(ctx, tx, userID, dayNumber); err != nil {
		if err == repository.ErrNotFound {
			return nil, apperrors.InvalidArgument("invalid day number")
		}
		return nil, apperrors.Internal("failed to read day record")
	}

	session, err := s.timerRepo.GetSessionTx(ctx, tx, userID)
	if err == repository.ErrNotFound {
		session = newIdleSession(userID, dayNumber, now)
		if err := s.timerRepo.CreateSessionTx(ctx, tx, session); err != nil {
			return nil, apperrors.Internal("failed to create timer session")
		}
	} else if err != nil {
		return nil, apperrors.Internal("failed to read timer session")
	}

	if session.Status == model.StatusRunning {
		return nil, apperrors.InvalidState("timer is already running")
	}

	// A paused session still holds unmerged seconds attributed to its
	// category. Switching categories is only allowed from idle; otherwise
	// banked time would be credited to the wrong bucket on stop.
	if session.Status == model.StatusPaused && category != session.Category {
		return nil, apperrors.InvalidState("category can only change while the timer is idle, stop the timer first")
	}

	previousStatus := session.Status
	session.DayNumber = dayNumber
	session.Category = category
	session.Status = model.StatusRunning
	session.StartedAt = &now
	session.UpdatedAt = now

	if err := s.timerRepo.UpdateSessionTx(ctx, tx, session, previousStatus); err != nil {
		if err == repository.ErrStaleState {
			return nil, apperrors.InvalidState("timer is already running")
		}
		return nil, apperrors.Internal("failed to update timer session")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	view := s.toTimerView(session, now)
	return &view, nil
}

// Pause folds the running interval into the banked seconds and clears
// StartedAt. Only a running session can pause.
func (s *TimerService) Pause(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	now := time.Now().UTC()
	tx, err := s.timerRepo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	session, err := s.timerRepo.GetSessionTx(ctx, tx, userID)
	if err == repository.ErrNotFound {
		return nil, apperrors.InvalidState("timer is not running")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to read timer session")
	}

	if session.Status != model.StatusRunning {
		return nil, apperrors.InvalidState("timer is not running")
	}

	session.AccumulatedSeconds = ComputeElapsedSeconds(session, now)
	session.Status = model.StatusPaused
	session.StartedAt = nil
	session.UpdatedAt = now

	if err := s.timerRepo.UpdateSessionTx(ctx, tx, session, model.StatusRunning); err != nil {
		if err == repository.ErrStaleState {
			return nil, apperrors.InvalidState("timer is not running")
		}
		return nil, apperrors.Internal("failed to update timer session")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	view := s.toTimerView(session, now)
	return &view, nil
}

// Stop merges everything the session accrued into the active day record and
// resets the session to idle/zero. The day stays open; completion only
// happens through finalization.
func (s *TimerService) Stop(ctx context.Context, userID string) (*StopResult, *apperrors.APIError) {
	now := time.Now().UTC()
	tx, err := s.timerRepo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	session, err := s.timerRepo.GetSessionTx(ctx, tx, userID)
	if err == repository.ErrNotFound {
		return nil, apperrors.InvalidState("no active timer to stop")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to read timer session")
	}

	if session.Status == model.StatusIdle && session.AccumulatedSeconds == 0 {
		return nil, apperrors.InvalidState("no active timer to stop")
	}

	state, apiErr := s.progress.ActiveDayTx(ctx, tx, userID, now)
	if apiErr != nil {
		return nil, apiErr
	}
	if state.AllCompleted {
		return nil, apperrors.Locked("all days are completed, the timer is locked")
	}
	if session.DayNumber != *state.ActiveDayNumber {
		return nil, apperrors.Forbidden(fmt.Sprintf("timer save is locked for day %d, only day %d can be modified", session.DayNumber, *state.ActiveDayNumber))
	}

	savedSeconds := ComputeElapsedSeconds(session, now)

	day, err := s.dayRepo.GetDayTx(ctx, tx, userID, session.DayNumber)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("day_not_found", "day record not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to read day record")
	}

	day.TimerSecondsLogged += savedSeconds
	day.UpdatedAt = now
	if err := s.dayRepo.UpdateDayTx(ctx, tx, day); err != nil {
		return nil, apperrors.Internal("failed to save day record")
	}
	if err := s.dayRepo.AddCategorySecondsTx(ctx, tx, userID, day.DayNumber, session.Category, savedSeconds); err != nil {
		return nil, apperrors.Internal("failed to save category seconds")
	}
	day.CategorySeconds[session.Category] += savedSeconds

	previousStatus := session.Status
	session.Status = model.StatusIdle
	session.StartedAt = nil
	session.AccumulatedSeconds = 0
	session.UpdatedAt = now

	if err := s.timerRepo.UpdateSessionTx(ctx, tx, session, previousStatus); err != nil {
		if err == repository.ErrStaleState {
			return nil, apperrors.InvalidState("timer state changed, retry")
		}
		return nil, apperrors.Internal("failed to reset timer session")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	return &StopResult{
		SavedSeconds: savedSeconds,
		Day:          toDayView(day),
	}, nil
}

func (s *TimerService) getOrCreateSession(ctx context.Context, userID string, dayNumber int, now time.Time) (*model.TimerSession, *apperrors.APIError) {
	session, err := s.timerRepo.GetSession(ctx, userID)
	if err == nil {
		return session, nil
	}
	if err != repository.ErrNotFound {
		return nil, apperrors.Internal("failed to read timer session")
	}

	session = newIdleSession(userID, dayNumber, now)
	if err := s.timerRepo.CreateSession(ctx, session); err != nil {
		// Lost a creation race; the other request's row wins.
		existing, getErr := s.timerRepo.GetSession(ctx, userID)
		if getErr != nil {
			return nil, apperrors.Internal("failed to create timer session")
		}
		return existing, nil
	}
	return session, nil
}

func newIdleSession(userID string, dayNumber int, now time.Time) *model.TimerSession {
	return &model.TimerSession{
		UserID:             userID,
		DayNumber:          dayNumber,
		Category:           model.DefaultCategory,
		Status:             model.StatusIdle,
		StartedAt:          nil,
		AccumulatedSeconds: 0,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (s *TimerService) toTimerView(session *model.TimerSession, now time.Time) TimerView {
	return TimerView{
		DayNumber: session.DayNumber,
		Category:  session.Category,
		Status:    session.Status,
		Seconds:   ComputeElapsedSeconds(session, now),
	}
}
