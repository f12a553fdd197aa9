package notify

// Severity classifies a user-facing notice
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Notice is a transient user-facing notification. Mutation responses carry
// one, and the reminder worker pushes them over the live feed. Notices are
// fire-and-forget: they hold no task state and are never persisted.
type Notice struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Success builds a success notice
func Success(message string) *Notice {
	return &Notice{Severity: SeveritySuccess, Message: message}
}

// Error builds an error notice
func Error(message string) *Notice {
	return &Notice{Severity: SeverityError, Message: message}
}

// Info builds an info notice
func Info(message string) *Notice {
	return &Notice{Severity: SeverityInfo, Message: message}
}

// Warning builds a warning notice
func Warning(message string) *Notice {
	return &Notice{Severity: SeverityWarning, Message: message}
}
