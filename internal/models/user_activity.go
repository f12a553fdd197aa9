package models

import (
	"time"

	"github.com/google/uuid"
)

// UserActivity records when a user last interacted with the API. The worker
// skips reminder scans for users idle past the inactivity threshold.
type UserActivity struct {
	UserID              uuid.UUID  `json:"user_id"`
	LastAPIInteraction  *time.Time `json:"last_api_interaction,omitempty"`
	RemindersPaused     bool       `json:"reminders_paused"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
