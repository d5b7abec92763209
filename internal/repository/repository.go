package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kirychukyurii/gridsynapse/internal/model"
)

var (
	// ErrQueueEmpty is returned by Pop when no job id is waiting
	ErrQueueEmpty = errors.New("job queue is empty")

	// ErrJobNotFound is returned when a job definition is missing or expired
	ErrJobNotFound = errors.New("job not found")

	// ErrScheduleNotFound is returned when no schedule record exists for a job
	ErrScheduleNotFound = errors.New("schedule not found")
)

// JobQueue is a FIFO of job ids waiting for the scheduler
type JobQueue interface {
	// Enqueue appends a job id and returns the resulting queue length
	Enqueue(ctx context.Context, jobID string) (int64, error)

	// Pop atomically removes the oldest job id, or returns ErrQueueEmpty
	Pop(ctx context.Context) (string, error)

	// Len returns the number of queued job ids
	Len(ctx context.Context) (int64, error)
}

// JobStore keeps submitted job definitions
type JobStore interface {
	PutJob(ctx context.Context, job *model.Job, ttl time.Duration) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
}

// ScheduleStore keeps the per-job outcome of scheduler batches
type ScheduleStore interface {
	PutSchedule(ctx context.Context, record *model.ScheduleRecord, ttl time.Duration) error
	GetSchedule(ctx context.Context, jobID string) (*model.ScheduleRecord, error)
}

// Store is a single backend serving the queue, job definitions and schedules
type Store interface {
	JobQueue
	JobStore
	ScheduleStore

	// Name identifies the backend in health reports
	Name() string

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error

	// Close releases the backend connection
	Close() error
}

// DatacenterSource returns the current datacenter state for a solve
type DatacenterSource interface {
	ListDatacenters(ctx context.Context) ([]model.Datacenter, error)
}
