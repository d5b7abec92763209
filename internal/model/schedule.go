package model

import "time"

// ScheduleRecord statuses
const (
	ScheduleStatusScheduled = "scheduled"
	ScheduleStatusFailed    = "failed"
)

// ScheduleRecord is the value persisted per job once the scheduler has handled it
type ScheduleRecord struct {
	JobID        string         `json:"job_id"`
	Status       string         `json:"status"` // scheduled | failed
	Entry        *ScheduleEntry `json:"entry,omitempty"`
	SolverStatus string         `json:"solver_status"`
	SolvedAt     time.Time      `json:"solved_at"`
}
