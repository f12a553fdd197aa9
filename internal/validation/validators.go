package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/taskpanel/taskpanel/internal/models"
)

// DueDateLayout is the calendar-date format tasks carry. Due dates have no
// timezone; comparisons use the server's local calendar day.
const DueDateLayout = "2006-01-02"

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("due_date", validateDueDate); err != nil {
		panic(fmt.Sprintf("failed to register due_date validator: %v", err))
	}
	if err := Validate.RegisterValidation("task_view", validateTaskView); err != nil {
		panic(fmt.Sprintf("failed to register task_view validator: %v", err))
	}
}

// validateDueDate validates that a string parses as a calendar date
func validateDueDate(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := time.Parse(DueDateLayout, value)
	return err == nil
}

// validateTaskView validates that a string is a valid TaskView enum value
func validateTaskView(fl validator.FieldLevel) bool {
	switch models.TaskView(fl.Field().String()) {
	case models.TaskViewActive, models.TaskViewCompleted, models.TaskViewArchived, models.TaskViewAll:
		return true
	default:
		return false
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateTaskView validates a TaskView string value
func ValidateTaskView(value string) error {
	switch models.TaskView(value) {
	case models.TaskViewActive, models.TaskViewCompleted, models.TaskViewArchived, models.TaskViewAll:
		return nil
	default:
		return fmt.Errorf("invalid view: %s (must be 'active', 'completed', 'archived', or 'all')", value)
	}
}

// ValidateDueDate validates a due date string for a write. The date must
// parse as YYYY-MM-DD and must not fall before today, mirroring the create
// form's minimum selectable date. Empty strings are allowed (no due date).
func ValidateDueDate(value string) error {
	if value == "" {
		return nil
	}
	due, err := time.Parse(DueDateLayout, value)
	if err != nil {
		return fmt.Errorf("invalid due_date: %s (must be YYYY-MM-DD)", value)
	}
	today, err := time.Parse(DueDateLayout, time.Now().Format(DueDateLayout))
	if err != nil {
		return fmt.Errorf("failed to resolve current date: %w", err)
	}
	if due.Before(today) {
		return fmt.Errorf("due_date must not be in the past")
	}
	return nil
}
