package model

import (
	"testing"
	"time"
)

func TestDateForDay(t *testing.T) {
	start := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		offset int
		want   time.Time
	}{
		{"first day", 0, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)},
		{"next day", 1, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)},
		{"month boundary", 20, time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)},
		{"last day of 180", 179, time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DateForDay(start, tc.offset)
			if !got.Equal(tc.want) {
				t.Fatalf("DateForDay(%d) = %v, want %v", tc.offset, got, tc.want)
			}
		})
	}
}

func TestDateForDayNormalizesToMidnight(t *testing.T) {
	start := time.Date(2026, 2, 14, 18, 45, 12, 0, time.FixedZone("IST", 5*3600+1800))
	got := DateForDay(start, 0)
	want := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("DateForDay with non-UTC start = %v, want %v", got, want)
	}
}

func TestCalendarDayNumber(t *testing.T) {
	start := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{"before start clamps to 1", start.AddDate(0, 0, -10), 1},
		{"start day is day 1", start.Add(9 * time.Hour), 1},
		{"third day mid afternoon", start.AddDate(0, 0, 2).Add(13 * time.Hour), 3},
		{"last day", start.AddDate(0, 0, 179), 180},
		{"after end clamps to total", start.AddDate(0, 0, 400), 180},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalendarDayNumber(start, tc.now, 180)
			if got != tc.want {
				t.Fatalf("CalendarDayNumber(%v) = %d, want %d", tc.now, got, tc.want)
			}
		})
	}
}
