package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// Budget is the wall-clock timeout applied to each run.
	Budget time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// StartedAt is when the task started.
	StartedAt time.Time

	// EndedAt is when the task completed.
	EndedAt time.Time

	// Success indicates whether the task completed without error.
	// A run that hit its wall-clock budget still counts as a success;
	// cancellation is an expected outcome, not an error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// ItemsProcessed is a count of articles persisted during the run.
	ItemsProcessed int

	// Skipped marks runs that never started (offline, power-gated).
	Skipped bool
}

// Task IDs for built-in tasks.
const (
	// TaskIDRefresh is the short-cadence delta sync.
	TaskIDRefresh = "refresh"

	// TaskIDProcessing is the long-cadence backlog drain, gated on
	// external power while a large pending backlog exists.
	TaskIDProcessing = "processing"
)
