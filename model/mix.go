package model

import "time"

// MixStatus is the lifecycle state of a mix job.
type MixStatus string

const (
	MixIdle       MixStatus = "idle"
	MixProcessing MixStatus = "processing"
	MixCompleted  MixStatus = "completed"
	MixError      MixStatus = "error"
)

// MixState is the externally visible status of the current mix job.
// Completed and Error are terminal; a new job starts from a fresh state.
type MixState struct {
	Status       MixStatus `json:"status"`
	Progress     int       `json:"progress"` // 0-100
	Message      string    `json:"message"`
	OutputFile   string    `json:"outputFile,omitempty"`
	ErrorDetails string    `json:"errorDetails,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MixRecord is one row of mix history, written after a job reaches a
// terminal state.
type MixRecord struct {
	ID          int64     `json:"id"`
	OutputFile  string    `json:"outputFile"`
	TrackCount  int       `json:"trackCount"`
	DurationMs  int64     `json:"durationMs"`
	Degraded    int       `json:"degraded"` // transitions that fell back to the recovery path
	Status      string    `json:"status"`   // completed or error
	ErrorDetail string    `json:"errorDetail,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
