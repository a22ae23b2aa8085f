package service_test

import (
	"testing"
	"time"

	"studytracker/backend/internal/model"
	"studytracker/backend/internal/service"
)

func TestComputeElapsedSecondsIdleAndPaused(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

	idle := &model.TimerSession{Status: model.StatusIdle, AccumulatedSeconds: 0}
	if got := service.ComputeElapsedSeconds(idle, now); got != 0 {
		t.Fatalf("idle session elapsed = %d, want 0", got)
	}

	paused := &model.TimerSession{Status: model.StatusPaused, AccumulatedSeconds: 125}
	if got := service.ComputeElapsedSeconds(paused, now); got != 125 {
		t.Fatalf("paused session elapsed = %d, want 125", got)
	}
}

func TestComputeElapsedSecondsRunning(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	startedAt := now.Add(-125 * time.Second)

	session := &model.TimerSession{
		Status:             model.StatusRunning,
		StartedAt:          &startedAt,
		AccumulatedSeconds: 40,
	}
	if got := service.ComputeElapsedSeconds(session, now); got != 165 {
		t.Fatalf("running session elapsed = %d, want 165", got)
	}
}

func TestComputeElapsedSecondsMonotonic(t *testing.T) {
	startedAt := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	session := &model.TimerSession{
		Status:             model.StatusRunning,
		StartedAt:          &startedAt,
		AccumulatedSeconds: 10,
	}

	previous := 0
	for _, offset := range []time.Duration{0, time.Second, 30 * time.Second, time.Hour} {
		got := service.ComputeElapsedSeconds(session, startedAt.Add(offset))
		if got < previous {
			t.Fatalf("elapsed decreased from %d to %d at offset %v", previous, got, offset)
		}
		previous = got
	}
}

func TestComputeElapsedSecondsBackwardClockClamps(t *testing.T) {
	startedAt := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	session := &model.TimerSession{
		Status:             model.StatusRunning,
		StartedAt:          &startedAt,
		AccumulatedSeconds: 90,
	}

	// Clock jumped behind the start timestamp; the delta must clamp to zero
	// instead of eating into the banked seconds.
	got := service.ComputeElapsedSeconds(session, startedAt.Add(-10*time.Minute))
	if got != 90 {
		t.Fatalf("elapsed after backward jump = %d, want 90", got)
	}
}

func TestComputeElapsedSecondsNilSession(t *testing.T) {
	if got := service.ComputeElapsedSeconds(nil, time.Now()); got != 0 {
		t.Fatalf("nil session elapsed = %d, want 0", got)
	}
}
