package repository

import (
	"context"
	"database/sql"
	"fmt"

	"studytracker/backend/internal/model"
)

type TimerRepository struct {
	db *sql.DB
}

func NewTimerRepository(db *sql.DB) *TimerRepository {
	return &TimerRepository{db: db}
}

func (r *TimerRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (r *TimerRepository) GetSession(ctx context.Context, userID string) (*model.TimerSession, error) {
	return getSession(ctx, r.db, userID)
}

func (r *TimerRepository) GetSessionTx(ctx context.Context, tx *sql.Tx, userID string) (*model.TimerSession, error) {
	return getSession(ctx, tx, userID)
}

func getSession(ctx context.Context, q querier, userID string) (*model.TimerSession, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT user_id, day_number, category, status, started_at,
		        accumulated_seconds, created_at, updated_at
		 FROM timer_sessions
		 WHERE user_id = ?`,
		userID,
	)
	return scanTimerSession(row)
}

func (r *TimerRepository) CreateSession(ctx context.Context, session *model.TimerSession) error {
	return createSession(ctx, r.db, session)
}

func (r *TimerRepository) CreateSessionTx(ctx context.Context, tx *sql.Tx, session *model.TimerSession) error {
	return createSession(ctx, tx, session)
}

func createSession(ctx context.Context, q querier, session *model.TimerSession) error {
	_, err := q.ExecContext(
		ctx,
		`INSERT INTO timer_sessions (
			user_id, day_number, category, status, started_at,
			accumulated_seconds, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.UserID,
		session.DayNumber,
		session.Category,
		session.Status,
		formatTimePtr(session.StartedAt),
		session.AccumulatedSeconds,
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create timer session: %w", err)
	}
	return nil
}

// UpdateSessionTx writes the session conditionally on its previous status.
// A concurrent transition consumes the row first; the loser sees zero rows
// affected and gets ErrStaleState instead of clobbering the winner's write.
func (r *TimerRepository) UpdateSessionTx(ctx context.Context, tx *sql.Tx, session *model.TimerSession, expectedStatus string) error {
	result, err := tx.ExecContext(
		ctx,
		`UPDATE timer_sessions
		 SET day_number = ?,
		     category = ?,
		     status = ?,
		     started_at = ?,
		     accumulated_seconds = ?,
		     updated_at = ?
		 WHERE user_id = ? AND status = ?`,
		session.DayNumber,
		session.Category,
		session.Status,
		formatTimePtr(session.StartedAt),
		session.AccumulatedSeconds,
		formatTime(session.UpdatedAt),
		session.UserID,
		expectedStatus,
	)
	if err != nil {
		return fmt.Errorf("update timer session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update timer session rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleState
	}
	return nil
}

func scanTimerSession(s scanner) (*model.TimerSession, error) {
	session := model.TimerSession{}
	var startedAt sql.NullString
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&session.UserID,
		&session.DayNumber,
		&session.Category,
		&session.Status,
		&startedAt,
		&session.AccumulatedSeconds,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan timer session: %w", err)
	}

	if startedAt.Valid {
		parsedStartedAt, parseErr := parseTime(startedAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse session started_at: %w", parseErr)
		}
		session.StartedAt = &parsedStartedAt
	}

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	session.CreatedAt = parsedCreatedAt

	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse session updated_at: %w", err)
	}
	session.UpdatedAt = parsedUpdatedAt

	return &session, nil
}
