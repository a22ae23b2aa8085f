package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"studytracker/backend/internal/apperrors"
	"studytracker/backend/internal/config"
	"studytracker/backend/internal/model"
	"studytracker/backend/internal/repository"
)

const maxTextFieldLength = 3000

type TrackerService struct {
	dayRepo   *repository.DayRepository
	timerRepo *repository.TimerRepository
	progress  *ProgressService
	cfg       config.Config
}

// DayView is a DayRecord plus read-time derived fields. Derived values are
// never stored.
type DayView struct {
	model.DayRecord
	TotalHours    float64            `json:"totalHours"`
	CategoryHours map[string]float64 `json:"categoryHours"`
}

// DayEdits is the shallow-merge payload for day updates: nil fields are left
// untouched, never reset.
type DayEdits struct {
	Categories        map[string]bool `json:"categories"`
	Notes             *string         `json:"notes"`
	Reflection        *string         `json:"reflection"`
	WeeklyReflection  *string         `json:"weeklyReflection"`
	RevisionMarked    *bool           `json:"revisionMarked"`
	ManualHoursLogged *float64        `json:"manualHoursLogged"`
}

type DayAccess struct {
	Day             DayView `json:"day"`
	Mode            string  `json:"mode"`
	ActiveDayNumber *int    `json:"activeDayNumber"`
}

type FinalizeResult struct {
	Day             DayView `json:"day"`
	SavedSeconds    int     `json:"savedSeconds"`
	ActiveDayNumber *int    `json:"activeDayNumber"`
	AllCompleted    bool    `json:"allCompleted"`
}

type DashboardSummary struct {
	CompletedDays    int                `json:"completedDays"`
	RemainingDays    int                `json:"remainingDays"`
	TotalHours       float64            `json:"totalHours"`
	ProgressPercent  float64            `json:"progressPercent"`
	ActiveDayNumber  *int               `json:"activeDayNumber"`
	AllCompleted     bool               `json:"allCompleted"`
	TrackerStartDate time.Time          `json:"trackerStartDate"`
	CategoryHours    map[string]float64 `json:"categoryHours"`
}

type Dashboard struct {
	Days    []DayView        `json:"days"`
	Summary DashboardSummary `json:"summary"`
}

type WeeklyBucket struct {
	Week          int     `json:"week"`
	Hours         float64 `json:"hours"`
	CompletedDays int     `json:"completedDays"`
}

type Analytics struct {
	ActiveDayNumber   *int               `json:"activeDayNumber"`
	Weekly            []WeeklyBucket     `json:"weekly"`
	CategoryDaysCount map[string]int     `json:"categoryDaysCount"`
	CategoryHours     map[string]float64 `json:"categoryHours"`
}

func NewTrackerService(
	dayRepo *repository.DayRepository,
	timerRepo *repository.TimerRepository,
	progress *ProgressService,
	cfg config.Config,
) *TrackerService {
	return &TrackerService{
		dayRepo:   dayRepo,
		timerRepo: timerRepo,
		progress:  progress,
		cfg:       cfg,
	}
}

// EnsureSeeded backfills the day rows for users that predate seeding at
// registration. A seeded user is a cheap count query.
func (s *TrackerService) EnsureSeeded(ctx context.Context, userID string) *apperrors.APIError {
	count, err := s.dayRepo.CountDays(ctx, userID)
	if err != nil {
		return apperrors.Internal("failed to read day records")
	}
	if count > 0 {
		return nil
	}
	now := time.Now().UTC()
	if err := s.dayRepo.SeedDays(ctx, userID, s.cfg.StartDate, s.cfg.TotalDays, now); err != nil {
		return apperrors.Internal("failed to initialize day records")
	}
	return nil
}

func (s *TrackerService) GetProgress(ctx context.Context, userID string) (*ProgressState, *apperrors.APIError) {
	if apiErr := s.EnsureSeeded(ctx, userID); apiErr != nil {
		return nil, apiErr
	}
	return s.progress.ActiveDay(ctx, userID, time.Now().UTC())
}

func (s *TrackerService) GetDashboard(ctx context.Context, userID string) (*Dashboard, *apperrors.APIError) {
	if apiErr := s.EnsureSeeded(ctx, userID); apiErr != nil {
		return nil, apiErr
	}

	now := time.Now().UTC()
	state, apiErr := s.progress.ActiveDay(ctx, userID, now)
	if apiErr != nil {
		return nil, apiErr
	}

	records, err := s.dayRepo.ListDays(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list day records")
	}

	views := make([]DayView, 0, len(records))
	completedDays := 0
	totalHours := 0.0
	categorySeconds := model.EmptyCategorySeconds()
	for i := range records {
		record := &records[i]
		if record.Completed {
			completedDays++
		}
		totalHours += record.ManualHoursLogged + float64(record.TimerSecondsLogged)/3600
		for _, category := range model.StudyCategories {
			categorySeconds[category] += record.CategorySeconds[category]
		}
		views = append(views, toDayView(record))
	}

	categoryHours := make(map[string]float64, len(categorySeconds))
	for _, category := range model.StudyCategories {
		categoryHours[category] = round2(float64(categorySeconds[category]) / 3600)
	}

	return &Dashboard{
		Days: views,
		Summary: DashboardSummary{
			CompletedDays:    completedDays,
			RemainingDays:    s.cfg.TotalDays - completedDays,
			TotalHours:       round2(totalHours),
			ProgressPercent:  round2(float64(completedDays) / float64(s.cfg.TotalDays) * 100),
			ActiveDayNumber:  state.ActiveDayNumber,
			AllCompleted:     state.AllCompleted,
			TrackerStartDate: model.DateForDay(s.cfg.StartDate, 0),
			CategoryHours:    categoryHours,
		},
	}, nil
}

func (s *TrackerService) GetAnalytics(ctx context.Context, userID string) (*Analytics, *apperrors.APIError) {
	if apiErr := s.EnsureSeeded(ctx, userID); apiErr != nil {
		return nil, apiErr
	}

	now := time.Now().UTC()
	state, apiErr := s.progress.ActiveDay(ctx, userID, now)
	if apiErr != nil {
		return nil, apiErr
	}

	records, err := s.dayRepo.ListDays(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list day records")
	}

	weekCount := (s.cfg.TotalDays + 6) / 7
	buckets := make([]WeeklyBucket, weekCount)
	for i := range buckets {
		buckets[i].Week = i + 1
	}

	categoryDaysCount := make(map[string]int, len(model.StudyCategories))
	categorySeconds := model.EmptyCategorySeconds()
	for _, category := range model.StudyCategories {
		categoryDaysCount[category] = 0
	}

	for i := range records {
		record := &records[i]
		weekIndex := (record.DayNumber - 1) / 7
		if weekIndex < 0 || weekIndex >= weekCount {
			continue
		}
		buckets[weekIndex].Hours += record.ManualHoursLogged + float64(record.TimerSecondsLogged)/3600
		if record.Completed {
			buckets[weekIndex].CompletedDays++
		}
		for _, category := range model.StudyCategories {
			if record.Categories[category] {
				categoryDaysCount[category]++
			}
			categorySeconds[category] += record.CategorySeconds[category]
		}
	}

	reachedDay := s.cfg.TotalDays
	if state.ActiveDayNumber != nil {
		reachedDay = *state.ActiveDayNumber
	}
	focusedWeeks := (reachedDay + 6) / 7
	if focusedWeeks > weekCount {
		focusedWeeks = weekCount
	}

	weekly := make([]WeeklyBucket, 0, focusedWeeks)
	for _, bucket := range buckets[:focusedWeeks] {
		bucket.Hours = round2(bucket.Hours)
		weekly = append(weekly, bucket)
	}

	categoryHours := make(map[string]float64, len(categorySeconds))
	for _, category := range model.StudyCategories {
		categoryHours[category] = round2(float64(categorySeconds[category]) / 3600)
	}

	return &Analytics{
		ActiveDayNumber:   state.ActiveDayNumber,
		Weekly:            weekly,
		CategoryDaysCount: categoryDaysCount,
		CategoryHours:     categoryHours,
	}, nil
}

// GetDay returns a day with its access mode. Days past the active cursor are
// not readable at all; completed days are locked, anything else read-only.
func (s *TrackerService) GetDay(ctx context.Context, userID string, dayNumber int) (*DayAccess, *apperrors.APIError) {
	if dayNumber < 1 || dayNumber > s.cfg.TotalDays {
		return nil, apperrors.InvalidArgument("day number out of range")
	}
	if apiErr := s.EnsureSeeded(ctx, userID); apiErr != nil {
		return nil, apiErr
	}

	now := time.Now().UTC()
	state, apiErr := s.progress.ActiveDay(ctx, userID, now)
	if apiErr != nil {
		return nil, apiErr
	}

	if state.ActiveDayNumber != nil && dayNumber > *state.ActiveDayNumber {
		return nil, apperrors.Forbidden(fmt.Sprintf("future day is locked, the active day is day %d", *state.ActiveDayNumber))
	}

	record, err := s.dayRepo.GetDay(ctx, userID, dayNumber)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("day_not_found", "day record not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to read day record")
	}

	mode := "readonly"
	switch {
	case state.ActiveDayNumber != nil && dayNumber == *state.ActiveDayNumber:
		mode = "editable"
	case record.Completed:
		mode = "locked"
	}

	return &DayAccess{
		Day:             toDayView(record),
		Mode:            mode,
		ActiveDayNumber: state.ActiveDayNumber,
	}, nil
}

// UpdateDay edits the active day's content without finalizing it. It runs the
// same active-day preconditions as finalization but leaves the record open.
func (s *TrackerService) UpdateDay(ctx context.Context, userID string, dayNumber int, edits DayEdits) (*DayView, *apperrors.APIError) {
	if apiErr := validateDayEdits(edits); apiErr != nil {
		return nil, apiErr
	}
	if apiErr := s.EnsureSeeded(ctx, userID); apiErr != nil {
		return nil, apiErr
	}

	now := time.Now().UTC()
	tx, err := s.dayRepo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	record, apiErr := s.loadActiveDayTx(ctx, tx, userID, dayNumber, now)
	if apiErr != nil {
		return nil, apiErr
	}

	if apiErr := s.applyEditsTx(ctx, tx, record, edits, now); apiErr != nil {
		return nil, apiErr
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	view := toDayView(record)
	return &view, nil
}

// FinalizeDay is the only Open -> Finalized transition. It merges any timer
// accrual into the day, applies the submitted edits, marks the day completed
// and locked, resets the timer session, and reports the next active day. All
// of it happens in one transaction; a failure leaves both rows untouched.
func (s *TrackerService) FinalizeDay(ctx context.Context, userID string, dayNumber int, edits DayEdits) (*FinalizeResult, *apperrors.APIError) {
	if apiErr := validateDayEdits(edits); apiErr != nil {
		return nil, apiErr
	}
	if apiErr := s.EnsureSeeded(ctx, userID); apiErr != nil {
		return nil, apiErr
	}

	now := time.Now().UTC()
	tx, err := s.dayRepo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	record, apiErr := s.loadActiveDayTx(ctx, tx, userID, dayNumber, now)
	if apiErr != nil {
		return nil, apiErr
	}

	savedSeconds := 0
	session, err := s.timerRepo.GetSessionTx(ctx, tx, userID)
	if err != nil && err != repository.ErrNotFound {
		return nil, apperrors.Internal("failed to read timer session")
	}
	if err == nil && session.DayNumber == dayNumber {
		savedSeconds = ComputeElapsedSeconds(session, now)
	}

	if savedSeconds > 0 {
		record.TimerSecondsLogged += savedSeconds
		if err := s.dayRepo.AddCategorySecondsTx(ctx, tx, userID, dayNumber, session.Category, savedSeconds); err != nil {
			return nil, apperrors.Internal("failed to save category seconds")
		}
		record.CategorySeconds[session.Category] += savedSeconds
	}

	record.Completed = true
	record.Locked = true
	record.LockedAt = &now

	if apiErr := s.applyEditsTx(ctx, tx, record, edits, now); apiErr != nil {
		return nil, apiErr
	}

	if session != nil {
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
	}

	nextState, apiErr := s.progress.ActiveDayTx(ctx, tx, userID, now)
	if apiErr != nil {
		return nil, apiErr
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	return &FinalizeResult{
		Day:             toDayView(record),
		SavedSeconds:    savedSeconds,
		ActiveDayNumber: nextState.ActiveDayNumber,
		AllCompleted:    nextState.AllCompleted,
	}, nil
}

// loadActiveDayTx runs the shared write preconditions in order: day number in
// range, challenge not over, target is the active day, record present.
func (s *TrackerService) loadActiveDayTx(ctx context.Context, tx *sql.Tx, userID string, dayNumber int, now time.Time) (*model.DayRecord, *apperrors.APIError) {
	if dayNumber < 1 || dayNumber > s.cfg.TotalDays {
		return nil, apperrors.InvalidArgument("day number out of range")
	}

	state, apiErr := s.progress.ActiveDayTx(ctx, tx, userID, now)
	if apiErr != nil {
		return nil, apiErr
	}
	if state.AllCompleted {
		return nil, apperrors.Locked("all days are completed, the tracker is locked")
	}
	if dayNumber != *state.ActiveDayNumber {
		reason := "future days are locked"
		if dayNumber < *state.ActiveDayNumber {
			reason = "past days are read-only"
		}
		return nil, apperrors.Forbidden(fmt.Sprintf("%s, only day %d can be modified", reason, *state.ActiveDayNumber))
	}

	record, err := s.dayRepo.GetDayTx(ctx, tx, userID, dayNumber)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("day_not_found", "day record not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to read day record")
	}
	return record, nil
}

func (s *TrackerService) applyEditsTx(ctx context.Context, tx *sql.Tx, record *model.DayRecord, edits DayEdits, now time.Time) *apperrors.APIError {
	if edits.Notes != nil {
		record.Notes = *edits.Notes
	}
	if edits.Reflection != nil {
		record.Reflection = *edits.Reflection
	}
	if edits.WeeklyReflection != nil {
		record.WeeklyReflection = *edits.WeeklyReflection
	}
	if edits.RevisionMarked != nil {
		record.RevisionMarked = *edits.RevisionMarked
	}
	if edits.ManualHoursLogged != nil {
		record.ManualHoursLogged = *edits.ManualHoursLogged
	}
	record.UpdatedAt = now

	if err := s.dayRepo.UpdateDayTx(ctx, tx, record); err != nil {
		return apperrors.Internal("failed to save day record")
	}

	for category, checked := range edits.Categories {
		if err := s.dayRepo.SetCategoryCheckedTx(ctx, tx, record.UserID, record.DayNumber, category, checked); err != nil {
			return apperrors.Internal("failed to save category checklist")
		}
		record.Categories[category] = checked
	}
	return nil
}

func validateDayEdits(edits DayEdits) *apperrors.APIError {
	if edits.Notes != nil && len(*edits.Notes) > maxTextFieldLength {
		return apperrors.InvalidArgument("notes exceed maximum length")
	}
	if edits.Reflection != nil && len(*edits.Reflection) > maxTextFieldLength {
		return apperrors.InvalidArgument("reflection exceeds maximum length")
	}
	if edits.WeeklyReflection != nil && len(*edits.WeeklyReflection) > maxTextFieldLength {
		return apperrors.InvalidArgument("weekly reflection exceeds maximum length")
	}
	if edits.ManualHoursLogged != nil && (*edits.ManualHoursLogged < 0 || *edits.ManualHoursLogged > 24) {
		return apperrors.InvalidArgument("manual hours must be between 0 and 24")
	}
	for category := range edits.Categories {
		if !model.IsValidCategory(category) {
			return apperrors.InvalidArgument("invalid study category")
		}
	}
	return nil
}

func toDayView(record *model.DayRecord) DayView {
	categoryHours := make(map[string]float64, len(record.CategorySeconds))
	for _, category := range model.StudyCategories {
		categoryHours[category] = round2(float64(record.CategorySeconds[category]) / 3600)
	}
	return DayView{
		DayRecord:     *record,
		TotalHours:    round2(record.ManualHoursLogged + float64(record.TimerSecondsLogged)/3600),
		CategoryHours: categoryHours,
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
