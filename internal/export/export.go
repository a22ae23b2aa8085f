// Package export renders a user's day records for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"studytracker/backend/internal/model"
	"studytracker/backend/internal/service"
)

type jsonExport struct {
	ExportedAt string            `json:"exportedAt"`
	Count      int               `json:"count"`
	Days       []service.DayView `json:"days"`
}

func ToJSON(w io.Writer, days []service.DayView, now time.Time) error {
	payload := jsonExport{
		ExportedAt: now.UTC().Format(time.RFC3339),
		Count:      len(days),
		Days:       days,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("encode export json: %w", err)
	}
	return nil
}

func ToCSV(w io.Writer, days []service.DayView) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"Day", "Date", "Completed", "Timer", "Timer (s)", "Manual Hours", "Total Hours", "Notes"}
	for _, category := range model.StudyCategories {
		header = append(header, category+" (s)")
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, day := range days {
		row := []string{
			strconv.Itoa(day.DayNumber),
			day.Date.UTC().Format("2006-01-02"),
			strconv.FormatBool(day.Completed),
			formatDuration(day.TimerSecondsLogged),
			strconv.Itoa(day.TimerSecondsLogged),
			strconv.FormatFloat(day.ManualHoursLogged, 'f', 2, 64),
			strconv.FormatFloat(day.TotalHours, 'f', 2, 64),
			day.Notes,
		}
		for _, category := range model.StudyCategories {
			row = append(row, strconv.Itoa(day.CategorySeconds[category]))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

func formatDuration(secs int) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
