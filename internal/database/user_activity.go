package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Users idle longer than this get their due-soon reminders paused.
const reminderPauseAfter = 72 * time.Hour

// UserActivityRepository tracks last API interaction per user.
type UserActivityRepository struct {
	db *DB
}

// NewUserActivityRepository creates a new user activity repository
func NewUserActivityRepository(db *DB) *UserActivityRepository {
	return &UserActivityRepository{db: db}
}

// UpdateLastInteraction records an API interaction for the user and unpauses
// reminders if they were paused for inactivity.
func (r *UserActivityRepository) UpdateLastInteraction(ctx context.Context, userID uuid.UUID) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_activity (user_id, last_api_interaction, reminders_paused, created_at, updated_at)
		VALUES ($1, $2, FALSE, $2, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			last_api_interaction = EXCLUDED.last_api_interaction,
			reminders_paused = FALSE,
			updated_at = EXCLUDED.updated_at
	`, userID, now)
	if err != nil {
		return fmt.Errorf("failed to update user activity: %w", err)
	}
	return nil
}

// GetUsersNeedingReminderPause returns users whose last interaction is older
// than the inactivity threshold and whose reminders are not yet paused.
func (r *UserActivityRepository) GetUsersNeedingReminderPause(ctx context.Context) ([]uuid.UUID, error) {
	cutoff := time.Now().Add(-reminderPauseAfter)
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM user_activity
		WHERE reminders_paused = FALSE AND last_api_interaction < $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query inactive users: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inactive users: %w", err)
	}

	return ids, nil
}

// SetRemindersPaused sets the reminders_paused flag for a user.
func (r *UserActivityRepository) SetRemindersPaused(ctx context.Context, userID uuid.UUID, paused bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_activity SET reminders_paused = $2, updated_at = $3 WHERE user_id = $1
	`, userID, paused, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set reminders paused: %w", err)
	}
	return nil
}

// IsRemindersPaused reports whether reminders are paused for a user. Users
// with no activity row yet are not paused.
func (r *UserActivityRepository) IsRemindersPaused(ctx context.Context, userID uuid.UUID) (bool, error) {
	var paused bool
	err := r.db.QueryRowContext(ctx, `
		SELECT reminders_paused FROM user_activity WHERE user_id = $1
	`, userID).Scan(&paused)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get reminder pause state: %w", err)
	}
	return paused, nil
}
