package models

// Processing status shared by records that are completed by a background task.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// IsTerminalStatus reports whether a processing status will not change without a new request.
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}
