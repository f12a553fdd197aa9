package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/taskpanel/taskpanel/internal/database"
	"github.com/taskpanel/taskpanel/internal/request"
	"go.uber.org/zap"
)

// ActivityTracking records the last API interaction for authenticated
// requests. Any interaction also unpauses due-soon reminders for the user.
func ActivityTracking(activityRepo database.UserActivityRepositoryInterface, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := request.UserFromContext(r); user != nil {
				if err := activityRepo.UpdateLastInteraction(r.Context(), user.ID); err != nil {
					// Tracking failures never fail the request
					log.Warn("activity_update_failed",
						zap.String("user_id", user.ID.String()),
						zap.Error(err),
					)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ActivityTracker periodically pauses reminders for users who have gone
// inactive. Run it from the server alongside the HTTP listener.
type ActivityTracker struct {
	activityRepo  database.UserActivityRepositoryInterface
	log           *zap.Logger
	checkInterval time.Duration
}

// NewActivityTracker creates a new activity tracker
func NewActivityTracker(activityRepo database.UserActivityRepositoryInterface, log *zap.Logger) *ActivityTracker {
	return &ActivityTracker{
		activityRepo:  activityRepo,
		log:           log,
		checkInterval: 1 * time.Hour,
	}
}

// Start runs the pause check loop until ctx is cancelled.
func (at *ActivityTracker) Start(ctx context.Context) {
	ticker := time.NewTicker(at.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			at.pauseInactive(ctx)
		}
	}
}

func (at *ActivityTracker) pauseInactive(ctx context.Context) {
	userIDs, err := at.activityRepo.GetUsersNeedingReminderPause(ctx)
	if err != nil {
		at.log.Warn("inactive_user_check_failed", zap.Error(err))
		return
	}

	for _, userID := range userIDs {
		if err := at.activityRepo.SetRemindersPaused(ctx, userID, true); err != nil {
			at.log.Warn("reminder_pause_failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
	}
}
