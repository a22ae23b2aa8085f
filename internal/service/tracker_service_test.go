package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"studytracker/backend/internal/config"
	"studytracker/backend/internal/db"
	"studytracker/backend/internal/model"
	"studytracker/backend/internal/repository"
	"studytracker/backend/internal/service"
	"studytracker/backend/migrations"
)

type testEnv struct {
	cfg       config.Config
	userRepo  *repository.UserRepository
	dayRepo   *repository.DayRepository
	timerRepo *repository.TimerRepository
	progress  *service.ProgressService
	timer     *service.TimerService
	tracker   *service.TrackerService
}

const testUserID = "user-1"

func newTestEnv(t *testing.T, totalDays int, policy string) *testEnv {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	if err := db.RunMigrations(database, migrations.FS); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := config.Config{
		JWTSecret:    "test-secret",
		TokenTTL:     time.Hour,
		StartDate:    time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
		TotalDays:    totalDays,
		CursorPolicy: policy,
	}

	userRepo := repository.NewUserRepository(database)
	dayRepo := repository.NewDayRepository(database)
	timerRepo := repository.NewTimerRepository(database)
	progress := service.NewProgressService(dayRepo, cfg)

	env := &testEnv{
		cfg:       cfg,
		userRepo:  userRepo,
		dayRepo:   dayRepo,
		timerRepo: timerRepo,
		progress:  progress,
		timer:     service.NewTimerService(timerRepo, dayRepo, progress),
		tracker:   service.NewTrackerService(dayRepo, timerRepo, progress, cfg),
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           testUserID,
		Name:         "Test User",
		Email:        "test@example.com",
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := userRepo.Create(context.Background(), &user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := dayRepo.SeedDays(context.Background(), testUserID, cfg.StartDate, totalDays, now); err != nil {
		t.Fatalf("seed days: %v", err)
	}

	return env
}

func (env *testEnv) createPausedSession(t *testing.T, dayNumber int, category string, seconds int) {
	t.Helper()
	now := time.Now().UTC()
	session := model.TimerSession{
		UserID:             testUserID,
		DayNumber:          dayNumber,
		Category:           category,
		Status:             model.StatusPaused,
		AccumulatedSeconds: seconds,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := env.timerRepo.CreateSession(context.Background(), &session); err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }

func TestFreshUserActiveDayIsOne(t *testing.T) {
	env := newTestEnv(t, 5, config.CursorPolicyCompletion)

	state, apiErr := env.progress.ActiveDay(context.Background(), testUserID, time.Now().UTC())
	if apiErr != nil {
		t.Fatalf("active day: %v", apiErr)
	}
	if state.AllCompleted {
		t.Fatal("fresh user reported all completed")
	}
	if state.ActiveDayNumber == nil || *state.ActiveDayNumber != 1 {
		t.Fatalf("active day = %v, want 1", state.ActiveDayNumber)
	}
}

func TestTimerStateMachine(t *testing.T) {
	env := newTestEnv(t, 5, config.CursorPolicyCompletion)
	ctx := context.Background()

	if _, apiErr := env.timer.Start(ctx, testUserID, 2, model.CategoryDSA); apiErr == nil || apiErr.Code != "forbidden" {
		t.Fatalf("start on inactive day: got %v, want forbidden", apiErr)
	}
	if _, apiErr := env.timer.Start(ctx, testUserID, 1, "pottery"); apiErr == nil || apiErr.Code != "invalid_argument" {
		t.Fatalf("start with bad category: got %v, want invalid_argument", apiErr)
	}

	timer, apiErr := env.timer.Start(ctx, testUserID, 1, model.CategoryDSA)
	if apiErr != nil {
		t.Fatalf("start: %v", apiErr)
	}
	if timer.Status != model.StatusRunning || timer.DayNumber != 1 {
		t.Fatalf("after start: %+v", timer)
	}

	if _, apiErr := env.timer.Start(ctx, testUserID, 1, model.CategoryDSA); apiErr == nil || apiErr.Code != "invalid_state" {
		t.Fatalf("double start: got %v, want invalid_state", apiErr)
	}

	timer, apiErr = env.timer.Pause(ctx, testUserID)
	if apiErr != nil {
		t.Fatalf("pause: %v", apiErr)
	}
	if timer.Status != model.StatusPaused {
		t.Fatalf("after pause: %+v", timer)
	}

	if _, apiErr := env.timer.Pause(ctx, testUserID); apiErr == nil || apiErr.Code != "invalid_state" {
		t.Fatalf("double pause: got %v, want invalid_state", apiErr)
	}

	result, apiErr := env.timer.Stop(ctx, testUserID)
	if apiErr != nil {
		t.Fatalf("stop: %v", apiErr)
	}
	if result.Day.Completed {
		t.Fatal("stop must not finalize the day")
	}

	session, err := env.timerRepo.GetSession(ctx, testUserID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != model.StatusIdle || session.AccumulatedSeconds != 0 {
		t.Fatalf("session not reset after stop: %+v", session)
	}

	if _, apiErr := env.timer.Stop(ctx, testUserID); apiErr == nil || apiErr.Code != "invalid_state" {
		t.Fatalf("stop with nothing accrued: got %v, want invalid_state", apiErr)
	}
}

func TestStartCannotSwitchCategoryWhilePaused(t *testing.T) {
	env := newTestEnv(t, 5, config.CursorPolicyCompletion)
	ctx := context.Background()
	env.createPausedSession(t, 1, model.CategoryDSA, 100)

	// Banked dsa seconds must not be reattributed to another category.
	if _, apiErr := env.timer.Start(ctx, testUserID, 1, model.CategoryBackend); apiErr == nil || apiErr.Code != "invalid_state" {
		t.Fatalf("category switch from paused: got %v, want invalid_state", apiErr)
	}

	// Resuming the same category is fine.
	timer, apiErr := env.timer.Start(ctx, testUserID, 1, model.CategoryDSA)
	if apiErr != nil {
		t.Fatalf("resume same category: %v", apiErr)
	}
	if timer.Status != model.StatusRunning {
		t.Fatalf("after resume: %+v", timer)
	}

	if _, apiErr := env.timer.Pause(ctx, testUserID); apiErr != nil {
		t.Fatalf("pause: %v", apiErr)
	}
	result, apiErr := env.timer.Stop(ctx, testUserID)
	if apiErr != nil {
		t.Fatalf("stop: %v", apiErr)
	}
	if result.Day.CategorySeconds[model.CategoryBackend] != 0 {
		t.Fatalf("backend seconds = %d, want 0", result.Day.CategorySeconds[model.CategoryBackend])
	}
	if result.Day.CategorySeconds[model.CategoryDSA] < 100 {
		t.Fatalf("dsa seconds = %d, want at least the 100 banked", result.Day.CategorySeconds[model.CategoryDSA])
	}

	// Once idle again, a different category may start.
	if _, apiErr := env.timer.Start(ctx, testUserID, 1, model.CategoryBackend); apiErr != nil {
		t.Fatalf("start new category from idle: %v", apiErr)
	}
}

func TestWritePathsRejectOutOfRangeDay(t *testing.T) {
	env := newTestEnv(t, 5, config.CursorPolicyCompletion)
	ctx := context.Background()

	if _, apiErr := env.tracker.UpdateDay(ctx, testUserID, 999, service.DayEdits{Notes: strPtr("x")}); apiErr == nil || apiErr.Code != "invalid_argument" {
		t.Fatalf("update day 999: got %v, want invalid_argument", apiErr)
	}
	if _, apiErr := env.tracker.FinalizeDay(ctx, testUserID, 0, service.DayEdits{}); apiErr == nil || apiErr.Code != "invalid_argument" {
		t.Fatalf("finalize day 0: got %v, want invalid_argument", apiErr)
	}
}

func TestFinalizeMergesTimerAccrual(t *testing.T) {
	env := newTestEnv(t, 5, config.CursorPolicyCompletion)
	ctx := context.Background()
	env.createPausedSession(t, 1, model.CategoryBackend, 125)

	result, apiErr := env.tracker.FinalizeDay(ctx, testUserID, 1, service.DayEdits{})
	if apiErr != nil {
		t.Fatalf("finalize: %v", apiErr)
	}

	if result.SavedSeconds != 125 {
		t.Fatalf("saved seconds = %d, want 125", result.SavedSeconds)
	}
	if !result.Day.Completed || !result.Day.Locked || result.Day.LockedAt == nil {
		t.Fatalf("day not finalized: %+v", result.Day.DayRecord)
	}
	if result.Day.TimerSecondsLogged != 125 {
		t.Fatalf("timer seconds logged = %d, want 125", result.Day.TimerSecondsLogged)
	}
	if result.Day.CategorySeconds[model.CategoryBackend] != 125 {
		t.Fatalf("backend category seconds = %d, want 125", result.Day.CategorySeconds[model.CategoryBackend])
	}
	if result.ActiveDayNumber == nil || *result.ActiveDayNumber != 2 {
		t.Fatalf("next active day = %v, want 2", result.ActiveDayNumber)
	}

	session, err := env.timerRepo.GetSession(ctx, testUserID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != model.StatusIdle || session.AccumulatedSeconds != 0 {
		t.Fatalf("session not reset after finalize: %+v", session)
	}
}

func TestFinalizeEnforcesActiveDay(t *testing.T) {
	env := newTestEnv(t, 5, config.CursorPolicyCompletion)
	ctx := context.Background()

	if _, apiErr := env.tracker.FinalizeDay(ctx, testUserID, 3, service.DayEdits{}); apiErr == nil || apiErr.Code != "forbidden" {
		t.Fatalf("finalize future day: got %v, want forbidden", apiErr)
	}

	if _, apiErr := env.tracker.FinalizeDay(ctx, testUserID, 1, service.DayEdits{}); apiErr != nil {
		t.Fatalf("finalize day 1: %v", apiErr)
	}

	// Repeat finalization of a finalized day is rejected, so time can never
	// be double counted.
	if _, apiErr := env.tracker.FinalizeDay(ctx, testUserID, 1, service.DayEdits{}); apiErr == nil || apiErr.Code != "forbidden" {
		t.Fatalf("refinalize day 1: got %v, want forbidden", apiErr)
	}
}

func TestCompletedDaysFormPrefix(t *testing.T) {
	env := newTestEnv(t, 4, config.CursorPolicyCompletion)
	ctx := context.Background()

	for day := 1; day <= 4; day++ {
		for wrong := day + 1; wrong <= 4; wrong++ {
			if _, apiErr := env.tracker.FinalizeDay(ctx, testUserID, wrong, service.DayEdits{}); apiErr == nil {
				t.Fatalf("out-of-order finalize of day %d succeeded while day %d open", wrong, day)
			}
		}
		if _, apiErr := env.tracker.FinalizeDay(ctx, testUserID, day, service.DayEdits{}); apiErr != nil {
			t.Fatalf("finalize day %d: %v", day, apiErr)
		}

		records, err := env.dayRepo.ListDays(ctx, testUserID)
		if err != nil {
			t.Fatalf("list days: %v", err)
		}
		for _, record := range records {
			if record.DayNumber <= day && !record.Completed {
				t.Fatalf("day %d incomplete after finalizing through day %d", record.DayNumber, day)
			}
			if record.DayNumber > day && record.Completed {
				t.Fatalf("day %d completed ahead of cursor at day %d", record.DayNumber, day)
			}
		}
	}
}

func TestAllDaysCompletedLocksEverything(t *testing.T) {
	env := newTestEnv(t, 2, config.CursorPolicyCompletion)
	ctx := context.Background()

	if _, apiErr := env.tracker.FinalizeDay(ctx, testUserID, 1, service.DayEdits{}); apiErr != nil {
		t.Fatalf("finalize day 1: %v", apiErr)
	}
	result, apiErr := env.tracker.FinalizeDay(ctx, testUserID, 2, service.DayEdits{})
	if apiErr != nil {
		t.Fatalf("finalize day 2: %v", apiErr)
	}
	if !result.AllCompleted || result.ActiveDayNumber != nil {
		t.Fatalf("after final day: %+v", result)
	}

	state, apiErr := env.progress.ActiveDay(ctx, testUserID, time.Now().UTC())
	if apiErr != nil {
		t.Fatalf("active day: %v", apiErr)
	}
	if !state.AllCompleted || state.ActiveDayNumber != nil {
		t.Fatalf("progress after completion: %+v", state)
	}

	if _, apiErr := env.timer.Start(ctx, testUserID, 1, model.CategoryDSA); apiErr == nil || apiErr.Code != "all_days_completed" {
		t.Fatalf("timer start after completion: got %v, want all_days_completed", apiErr)
	}
	if _, apiErr := env.tracker.FinalizeDay(ctx, testUserID, 1, service.DayEdits{}); apiErr == nil || apiErr.Code != "all_days_completed" {
		t.Fatalf("finalize after completion: got %v, want all_days_completed", apiErr)
	}
}

func TestUpdateDayShallowMerge(t *testing.T) {
	env := newTestEnv(t, 5, config.CursorPolicyCompletion)
	ctx := context.Background()

	if _, apiErr := env.tracker.UpdateDay(ctx, testUserID, 1, service.DayEdits{
		Notes:      strPtr("solved two graph problems"),
		Categories: map[string]bool{model.CategoryDSA: true},
	}); apiErr != nil {
		t.Fatalf("first update: %v", apiErr)
	}

	day, apiErr := env.tracker.UpdateDay(ctx, testUserID, 1, service.DayEdits{
		ManualHoursLogged: floatPtr(1.5),
		RevisionMarked:    boolPtr(true),
	})
	if apiErr != nil {
		t.Fatalf("second update: %v", apiErr)
	}

	if day.Notes != "solved two graph problems" {
		t.Fatalf("notes reset by unrelated edit: %q", day.Notes)
	}
	if !day.Categories[model.CategoryDSA] {
		t.Fatal("category checklist reset by unrelated edit")
	}
	if day.ManualHoursLogged != 1.5 || !day.RevisionMarked {
		t.Fatalf("second edit not applied: %+v", day.DayRecord)
	}
	if day.Completed {
		t.Fatal("plain update must not complete the day")
	}

	if _, apiErr := env.tracker.UpdateDay(ctx, testUserID, 2, service.DayEdits{Notes: strPtr("x")}); apiErr == nil || apiErr.Code != "forbidden" {
		t.Fatalf("update inactive day: got %v, want forbidden", apiErr)
	}
	if _, apiErr := env.tracker.UpdateDay(ctx, testUserID, 1, service.DayEdits{ManualHoursLogged: floatPtr(30)}); apiErr == nil || apiErr.Code != "invalid_argument" {
		t.Fatalf("out-of-range manual hours: got %v, want invalid_argument", apiErr)
	}
}

func TestGetDayAccessModes(t *testing.T) {
	env := newTestEnv(t, 5, config.CursorPolicyCompletion)
	ctx := context.Background()

	if _, apiErr := env.tracker.FinalizeDay(ctx, testUserID, 1, service.DayEdits{}); apiErr != nil {
		t.Fatalf("finalize day 1: %v", apiErr)
	}

	access, apiErr := env.tracker.GetDay(ctx, testUserID, 2)
	if apiErr != nil {
		t.Fatalf("get active day: %v", apiErr)
	}
	if access.Mode != "editable" {
		t.Fatalf("active day mode = %q, want editable", access.Mode)
	}

	access, apiErr = env.tracker.GetDay(ctx, testUserID, 1)
	if apiErr != nil {
		t.Fatalf("get finalized day: %v", apiErr)
	}
	if access.Mode != "locked" {
		t.Fatalf("finalized day mode = %q, want locked", access.Mode)
	}

	if _, apiErr := env.tracker.GetDay(ctx, testUserID, 3); apiErr == nil || apiErr.Code != "forbidden" {
		t.Fatalf("get future day: got %v, want forbidden", apiErr)
	}
	if _, apiErr := env.tracker.GetDay(ctx, testUserID, 99); apiErr == nil || apiErr.Code != "invalid_argument" {
		t.Fatalf("get out-of-range day: got %v, want invalid_argument", apiErr)
	}
}

func TestCalendarPolicyCursorFollowsClock(t *testing.T) {
	env := newTestEnv(t, 5, config.CursorPolicyCalendar)
	ctx := context.Background()

	// Third calendar day of the challenge, nothing completed.
	now := env.cfg.StartDate.AddDate(0, 0, 2).Add(10 * time.Hour)
	state, apiErr := env.progress.ActiveDay(ctx, testUserID, now)
	if apiErr != nil {
		t.Fatalf("active day: %v", apiErr)
	}
	if state.ActiveDayNumber == nil || *state.ActiveDayNumber != 3 {
		t.Fatalf("calendar active day = %v, want 3", state.ActiveDayNumber)
	}
	if state.AllCompleted {
		t.Fatal("calendar policy reported all completed")
	}
}

func TestStopRejectedWhenSessionDayNoLongerActive(t *testing.T) {
	env := newTestEnv(t, 5, config.CursorPolicyCompletion)
	ctx := context.Background()

	// Accrual parked on day 1, but day 1 gets finalized by a direct edit
	// path before the stop arrives.
	env.createPausedSession(t, 1, model.CategoryDSA, 60)
	if _, apiErr := env.tracker.FinalizeDay(ctx, testUserID, 1, service.DayEdits{}); apiErr != nil {
		t.Fatalf("finalize: %v", apiErr)
	}

	// Finalize already drained and reset the session, so stop sees nothing.
	if _, apiErr := env.timer.Stop(ctx, testUserID); apiErr == nil || apiErr.Code != "invalid_state" {
		t.Fatalf("stop after finalize: got %v, want invalid_state", apiErr)
	}
}

func TestDashboardSummary(t *testing.T) {
	env := newTestEnv(t, 4, config.CursorPolicyCompletion)
	ctx := context.Background()

	env.createPausedSession(t, 1, model.CategoryEnglish, 1800)
	if _, apiErr := env.tracker.FinalizeDay(ctx, testUserID, 1, service.DayEdits{
		ManualHoursLogged: floatPtr(1),
	}); apiErr != nil {
		t.Fatalf("finalize: %v", apiErr)
	}

	dashboard, apiErr := env.tracker.GetDashboard(ctx, testUserID)
	if apiErr != nil {
		t.Fatalf("dashboard: %v", apiErr)
	}

	if len(dashboard.Days) != 4 {
		t.Fatalf("dashboard days = %d, want 4", len(dashboard.Days))
	}
	summary := dashboard.Summary
	if summary.CompletedDays != 1 || summary.RemainingDays != 3 {
		t.Fatalf("completed/remaining = %d/%d, want 1/3", summary.CompletedDays, summary.RemainingDays)
	}
	if summary.TotalHours != 1.5 {
		t.Fatalf("total hours = %v, want 1.5", summary.TotalHours)
	}
	if summary.ProgressPercent != 25 {
		t.Fatalf("progress percent = %v, want 25", summary.ProgressPercent)
	}
	if summary.CategoryHours[model.CategoryEnglish] != 0.5 {
		t.Fatalf("english hours = %v, want 0.5", summary.CategoryHours[model.CategoryEnglish])
	}
	if summary.ActiveDayNumber == nil || *summary.ActiveDayNumber != 2 {
		t.Fatalf("summary active day = %v, want 2", summary.ActiveDayNumber)
	}
}

func TestSeedDaysIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 5, config.CursorPolicyCompletion)
	ctx := context.Background()

	if err := env.dayRepo.SeedDays(ctx, testUserID, env.cfg.StartDate, 5, time.Now().UTC()); err != nil {
		t.Fatalf("repeat seed: %v", err)
	}
	count, err := env.dayRepo.CountDays(ctx, testUserID)
	if err != nil {
		t.Fatalf("count days: %v", err)
	}
	if count != 5 {
		t.Fatalf("day count after repeat seed = %d, want 5", count)
	}
}
