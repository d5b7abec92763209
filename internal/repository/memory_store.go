package repository

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kirychukyurii/gridsynapse/internal/model"
)

const memoryCleanupInterval = 10 * time.Minute

// MemoryStore keeps everything in process: TTL maps for jobs and schedules
// and a mutex guarded FIFO for the queue. Suitable for a single replica.
type MemoryStore struct {
	jobs      *gocache.Cache
	schedules *gocache.Cache

	mu    sync.Mutex
	queue []string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:      gocache.New(gocache.NoExpiration, memoryCleanupInterval),
		schedules: gocache.New(gocache.NoExpiration, memoryCleanupInterval),
	}
}

// expiration maps a non-positive ttl to "never expires"
func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

// Name implements Store
func (s *MemoryStore) Name() string {
	return "memory"
}

// Enqueue implements JobQueue
func (s *MemoryStore) Enqueue(_ context.Context, jobID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, jobID)
	return int64(len(s.queue)), nil
}

// Pop implements JobQueue
func (s *MemoryStore) Pop(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return "", ErrQueueEmpty
	}
	id := s.queue[0]
	s.queue[0] = ""
	s.queue = s.queue[1:]
	return id, nil
}

// Len implements JobQueue
func (s *MemoryStore) Len(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.queue)), nil
}

// PutJob implements JobStore. A copy is stored.
func (s *MemoryStore) PutJob(_ context.Context, job *model.Job, ttl time.Duration) error {
	s.jobs.Set(job.ID, *job, expiration(ttl))
	return nil
}

// GetJob implements JobStore
func (s *MemoryStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	v, ok := s.jobs.Get(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	job := v.(model.Job)
	return &job, nil
}

// PutSchedule implements ScheduleStore. A copy is stored.
func (s *MemoryStore) PutSchedule(_ context.Context, record *model.ScheduleRecord, ttl time.Duration) error {
	rec := *record
	if record.Entry != nil {
		entry := *record.Entry
		rec.Entry = &entry
	}
	s.schedules.Set(record.JobID, rec, expiration(ttl))
	return nil
}

// GetSchedule implements ScheduleStore
func (s *MemoryStore) GetSchedule(_ context.Context, jobID string) (*model.ScheduleRecord, error) {
	v, ok := s.schedules.Get(jobID)
	if !ok {
		return nil, ErrScheduleNotFound
	}
	rec := v.(model.ScheduleRecord)
	if rec.Entry != nil {
		entry := *rec.Entry
		rec.Entry = &entry
	}
	return &rec, nil
}

// Ping implements Store
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	s.jobs.Flush()
	s.schedules.Flush()
	return nil
}
