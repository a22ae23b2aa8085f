package model

import "time"

// DateForDay maps the challenge start date plus a zero-based offset to the
// calendar date of that slot. Everything is normalized to UTC midnight so a
// timezone boundary can never shift a slot by a day.
func DateForDay(startDate time.Time, offset int) time.Time {
	return utcMidnight(startDate).AddDate(0, 0, offset)
}

// CalendarDayNumber maps a wall-clock instant to a 1-based day number,
// clamped to [1, totalDays].
func CalendarDayNumber(startDate, now time.Time, totalDays int) int {
	diff := utcMidnight(now).Sub(utcMidnight(startDate))
	dayNumber := int(diff.Hours()/24) + 1
	if dayNumber < 1 {
		return 1
	}
	if dayNumber > totalDays {
		return totalDays
	}
	return dayNumber
}

func utcMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
