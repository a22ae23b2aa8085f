package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studytracker/backend/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so lookups can run inside
// or outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type DayRepository struct {
	db *sql.DB
}

func NewDayRepository(db *sql.DB) *DayRepository {
	return &DayRepository{db: db}
}

func (r *DayRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

// SeedDays creates all day rows for a user in one transaction. A second call
// is a no-op: the count guard catches it, and the (user_id, day_number)
// primary key rejects a concurrent duplicate insert.
func (r *DayRepository) SeedDays(ctx context.Context, userID string, startDate time.Time, totalDays int, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM day_records WHERE user_id = ?`,
		userID,
	).Scan(&existing); err != nil {
		return fmt.Errorf("count day records: %w", err)
	}
	if existing > 0 {
		return tx.Commit()
	}

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT INTO day_records (user_id, day_number, date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare seed insert: %w", err)
	}
	defer stmt.Close()

	for day := 1; day <= totalDays; day++ {
		date := model.DateForDay(startDate, day-1)
		if _, err := stmt.ExecContext(ctx, userID, day, formatTime(date), formatTime(now), formatTime(now)); err != nil {
			return fmt.Errorf("seed day %d: %w", day, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}

func (r *DayRepository) CountDays(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM day_records WHERE user_id = ?`,
		userID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count day records: %w", err)
	}
	return count, nil
}

// FirstIncompleteDay returns the smallest day number not yet completed, or
// ErrNotFound when every day is finalized. This is the progress cursor; it is
// recomputed from the table on every call, never cached.
func (r *DayRepository) FirstIncompleteDay(ctx context.Context, userID string) (int, error) {
	return firstIncompleteDay(ctx, r.db, userID)
}

func (r *DayRepository) FirstIncompleteDayTx(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	return firstIncompleteDay(ctx, tx, userID)
}

func firstIncompleteDay(ctx context.Context, q querier, userID string) (int, error) {
	var day int
	err := q.QueryRowContext(
		ctx,
		`SELECT day_number FROM day_records
		 WHERE user_id = ? AND completed = 0
		 ORDER BY day_number ASC
		 LIMIT 1`,
		userID,
	).Scan(&day)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("first incomplete day: %w", err)
	}
	return day, nil
}

func (r *DayRepository) CountCompleted(ctx context.Context, userID string) (int, error) {
	return countCompleted(ctx, r.db, userID)
}

func (r *DayRepository) CountCompletedTx(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	return countCompleted(ctx, tx, userID)
}

func countCompleted(ctx context.Context, q querier, userID string) (int, error) {
	var count int
	if err := q.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM day_records WHERE user_id = ? AND completed = 1`,
		userID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count completed days: %w", err)
	}
	return count, nil
}

func (r *DayRepository) GetDay(ctx context.Context, userID string, dayNumber int) (*model.DayRecord, error) {
	return getDay(ctx, r.db, userID, dayNumber)
}

func (r *DayRepository) GetDayTx(ctx context.Context, tx *sql.Tx, userID string, dayNumber int) (*model.DayRecord, error) {
	return getDay(ctx, tx, userID, dayNumber)
}

func getDay(ctx context.Context, q querier, userID string, dayNumber int) (*model.DayRecord, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT user_id, day_number, date, notes, reflection, weekly_reflection,
		        revision_marked, manual_hours_logged, timer_seconds_logged,
		        completed, locked, locked_at, created_at, updated_at
		 FROM day_records
		 WHERE user_id = ? AND day_number = ?`,
		userID,
		dayNumber,
	)
	record, err := scanDayRecord(row)
	if err != nil {
		return nil, err
	}
	if err := loadDayCategories(ctx, q, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *DayRepository) ListDays(ctx context.Context, userID string) ([]model.DayRecord, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT user_id, day_number, date, notes, reflection, weekly_reflection,
		        revision_marked, manual_hours_logged, timer_seconds_logged,
		        completed, locked, locked_at, created_at, updated_at
		 FROM day_records
		 WHERE user_id = ?
		 ORDER BY day_number ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list day records: %w", err)
	}
	defer rows.Close()

	records := make([]model.DayRecord, 0, model.DefaultTotalDays)
	index := make(map[int]int)
	for rows.Next() {
		record, scanErr := scanDayRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		index[record.DayNumber] = len(records)
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day records: %w", err)
	}

	catRows, err := r.db.QueryContext(
		ctx,
		`SELECT day_number, category, checked, seconds
		 FROM day_categories
		 WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list day categories: %w", err)
	}
	defer catRows.Close()

	for catRows.Next() {
		var dayNumber int
		var category string
		var checked bool
		var seconds int
		if err := catRows.Scan(&dayNumber, &category, &checked, &seconds); err != nil {
			return nil, fmt.Errorf("scan day category: %w", err)
		}
		if i, ok := index[dayNumber]; ok {
			records[i].Categories[category] = checked
			records[i].CategorySeconds[category] = seconds
		}
	}
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day categories: %w", err)
	}

	return records, nil
}

func (r *DayRepository) UpdateDayTx(ctx context.Context, tx *sql.Tx, record *model.DayRecord) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE day_records
		 SET notes = ?,
		     reflection = ?,
		     weekly_reflection = ?,
		     revision_marked = ?,
		     manual_hours_logged = ?,
		     timer_seconds_logged = ?,
		     completed = ?,
		     locked = ?,
		     locked_at = ?,
		     updated_at = ?
		 WHERE user_id = ? AND day_number = ?`,
		record.Notes,
		record.Reflection,
		record.WeeklyReflection,
		record.RevisionMarked,
		record.ManualHoursLogged,
		record.TimerSecondsLogged,
		record.Completed,
		record.Locked,
		formatTimePtr(record.LockedAt),
		formatTime(record.UpdatedAt),
		record.UserID,
		record.DayNumber,
	)
	if err != nil {
		return fmt.Errorf("update day record: %w", err)
	}
	return nil
}

// AddCategorySecondsTx merges accrued seconds into a category bucket by
// addition. The upsert means buckets are materialized on first write.
func (r *DayRepository) AddCategorySecondsTx(ctx context.Context, tx *sql.Tx, userID string, dayNumber int, category string, seconds int) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO day_categories (user_id, day_number, category, checked, seconds)
		 VALUES (?, ?, ?, 0, ?)
		 ON CONFLICT(user_id, day_number, category)
		 DO UPDATE SET seconds = seconds + excluded.seconds`,
		userID,
		dayNumber,
		category,
		seconds,
	)
	if err != nil {
		return fmt.Errorf("add category seconds: %w", err)
	}
	return nil
}

func (r *DayRepository) SetCategoryCheckedTx(ctx context.Context, tx *sql.Tx, userID string, dayNumber int, category string, checked bool) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO day_categories (user_id, day_number, category, checked, seconds)
		 VALUES (?, ?, ?, ?, 0)
		 ON CONFLICT(user_id, day_number, category)
		 DO UPDATE SET checked = excluded.checked`,
		userID,
		dayNumber,
		category,
		checked,
	)
	if err != nil {
		return fmt.Errorf("set category checked: %w", err)
	}
	return nil
}

func loadDayCategories(ctx context.Context, q querier, record *model.DayRecord) error {
	rows, err := q.QueryContext(
		ctx,
		`SELECT category, checked, seconds
		 FROM day_categories
		 WHERE user_id = ? AND day_number = ?`,
		record.UserID,
		record.DayNumber,
	)
	if err != nil {
		return fmt.Errorf("load day categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var checked bool
		var seconds int
		if err := rows.Scan(&category, &checked, &seconds); err != nil {
			return fmt.Errorf("scan day category: %w", err)
		}
		record.Categories[category] = checked
		record.CategorySeconds[category] = seconds
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate day categories: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDayRecord(s scanner) (*model.DayRecord, error) {
	record := model.DayRecord{
		Categories:      model.EmptyCategoryChecks(),
		CategorySeconds: model.EmptyCategorySeconds(),
	}
	var date string
	var lockedAt sql.NullString
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&record.UserID,
		&record.DayNumber,
		&date,
		&record.Notes,
		&record.Reflection,
		&record.WeeklyReflection,
		&record.RevisionMarked,
		&record.ManualHoursLogged,
		&record.TimerSecondsLogged,
		&record.Completed,
		&record.Locked,
		&lockedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan day record: %w", err)
	}

	parsedDate, err := parseTime(date)
	if err != nil {
		return nil, fmt.Errorf("parse day date: %w", err)
	}
	record.Date = parsedDate

	if lockedAt.Valid {
		parsedLockedAt, parseErr := parseTime(lockedAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse day locked_at: %w", parseErr)
		}
		record.LockedAt = &parsedLockedAt
	}

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse day created_at: %w", err)
	}
	record.CreatedAt = parsedCreatedAt

	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse day updated_at: %w", err)
	}
	record.UpdatedAt = parsedUpdatedAt

	return &record, nil
}
