package model

// Health represents the current status of the service and its collaborators
type Health struct {
	Status        string            `json:"status"` // healthy | degraded
	Version       string            `json:"version"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Services      map[string]string `json:"services"`
}

// JobStatus is the view of a submitted job returned by the API
type JobStatus struct {
	Job      *Job            `json:"job"`
	Schedule *ScheduleRecord `json:"schedule,omitempty"`
}

// SubmitResult is returned after a job has been queued
type SubmitResult struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	QueueLength int64  `json:"queue_length"`
}
