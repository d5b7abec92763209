// Package scheduler drains the job queue in batches and persists the
// placement the optimizer finds for each batch.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/kirychukyurii/gridsynapse/internal/backoff"
	"github.com/kirychukyurii/gridsynapse/internal/concurrent"
	"github.com/kirychukyurii/gridsynapse/internal/metrics"
	"github.com/kirychukyurii/gridsynapse/internal/model"
	"github.com/kirychukyurii/gridsynapse/internal/repository"
)

// resolveConcurrency bounds parallel job lookups against the store
const resolveConcurrency = 8

// State is the phase of the scheduler loop
type State int32

const (
	StateIdle State = iota
	StateDraining
	StateSolving
	StatePersisting
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateSolving:
		return "solving"
	case StatePersisting:
		return "persisting"
	case StateBackoff:
		return "backoff"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Optimizer solves one batch
type Optimizer interface {
	Optimize(ctx context.Context, jobs []model.Job, datacenters []model.Datacenter, horizonHours int, carbonWeight float64) *model.OptimizationResult
	Unplaceable(jobs []model.Job, datacenters []model.Datacenter, horizonHours int) []string
}

// Store is the queue, job definitions and schedule sink the loop works on
type Store interface {
	repository.JobQueue
	repository.JobStore
	repository.ScheduleStore
}

// Config tunes the loop
type Config struct {
	BatchSize    int
	PollInterval time.Duration
	Retention    time.Duration
	HorizonHours int
	CarbonWeight float64
	Backoff      backoff.RetryPolicy
}

// Scheduler runs the continuous optimization loop
type Scheduler struct {
	cfg         Config
	store       Store
	datacenters repository.DatacenterSource
	optimizer   Optimizer
	metrics     *metrics.Metrics
	logger      *slog.Logger

	retrier  backoff.Retrier
	state    atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a scheduler in the Idle state
func New(
	cfg Config,
	store Store,
	datacenters repository.DatacenterSource,
	optimizer Optimizer,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Scheduler {
	if cfg.Backoff == nil {
		cfg.Backoff = backoff.NewExponentialPolicy(10*time.Second, 5*time.Minute, 2)
	}
	return &Scheduler{
		cfg:         cfg,
		store:       store,
		datacenters: datacenters,
		optimizer:   optimizer,
		metrics:     m,
		logger:      logger,
		retrier:     backoff.NewRetrier(cfg.Backoff),
		stopCh:      make(chan struct{}),
	}
}

// State returns the current phase of the loop
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
}

// Start begins the loop in a background goroutine
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting scheduler",
		slog.Int("batch_size", s.cfg.BatchSize),
		slog.Duration("poll_interval", s.cfg.PollInterval),
		slog.Duration("retention", s.cfg.Retention),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()
}

// Stop gracefully stops the loop. A batch already claimed is finished first.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping scheduler")
		close(s.stopCh)
	})
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Run blocks until ctx is cancelled or Stop is called.
// Cancellation is observed only between batches.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.setState(StateIdle)

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		if !s.wait(ctx, s.step(ctx)) {
			return
		}
	}
}

// wait sleeps for d unless the loop is cancelled first
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// step runs one pass from Idle and returns the delay before the next pass
func (s *Scheduler) step(ctx context.Context) time.Duration {
	s.setState(StateDraining)

	ids, err := s.drain(ctx)
	if err != nil {
		if len(ids) == 0 {
			return s.fail(ctx, nil, fmt.Sprintf("%s: %v", model.StatusError, err))
		}
		s.logger.Warn("queue failed mid batch, continuing with claimed jobs",
			slog.Int("claimed", len(ids)),
			slog.String("error", err.Error()),
		)
	}
	if len(ids) == 0 {
		s.setState(StateIdle)
		return s.cfg.PollInterval
	}

	// the batch is claimed, finish it even if the loop is being cancelled
	work := context.WithoutCancel(ctx)

	jobs := s.resolve(work, ids)
	if len(jobs) == 0 {
		return 0
	}

	datacenters, err := s.datacenters.ListDatacenters(work)
	if err != nil {
		s.logger.Error("failed to list datacenters", slog.String("error", err.Error()))
		return s.fail(work, jobs, fmt.Sprintf("%s: %v", model.StatusError, err))
	}

	s.setState(StateSolving)
	s.logger.Info("processing batch",
		slog.Int("jobs", len(jobs)),
		slog.Int("datacenters", len(datacenters)),
	)

	result := s.optimizer.Optimize(work, jobs, datacenters, s.cfg.HorizonHours, s.cfg.CarbonWeight)
	s.metrics.ObserveOptimization(result.SolverStatus, result.SolveTime)

	var unplaceable []model.Job
	if !result.Success && result.SolverStatus == model.StatusInfeasible {
		var placeable []model.Job
		placeable, unplaceable = s.partition(jobs, datacenters)
		if len(unplaceable) > 0 && len(placeable) > 0 {
			s.logger.Warn("re-solving batch without unplaceable jobs",
				slog.Int("unplaceable", len(unplaceable)),
				slog.Int("jobs", len(placeable)),
			)
			result = s.optimizer.Optimize(work, placeable, datacenters, s.cfg.HorizonHours, s.cfg.CarbonWeight)
			s.metrics.ObserveOptimization(result.SolverStatus, result.SolveTime)
		}
	}

	if !result.Success {
		s.logger.Error("optimization failed", slog.String("status", result.SolverStatus))
		return s.fail(work, jobs, result.SolverStatus)
	}

	s.setState(StatePersisting)
	err = s.persist(work, result)
	if len(unplaceable) > 0 {
		s.markFailed(work, unplaceable, fmt.Sprintf("%s: no allowed placement", model.StatusInfeasible))
	}
	if err != nil {
		s.logger.Error("failed to persist schedule", slog.String("error", err.Error()))
		s.metrics.BatchProcessed(metrics.OutcomeFailed, 0)
		s.setState(StateBackoff)
		return s.retrier.NextBackOff()
	}

	s.logger.Info("batch scheduled",
		slog.Int("scheduled", len(result.Schedule)),
		slog.Int("rejected", len(result.Rejected)),
		slog.Int("unplaceable", len(unplaceable)),
		slog.Duration("solve_time", result.SolveTime),
		slog.Float64("total_cost", result.TotalCost),
		slog.Float64("total_carbon", result.TotalCarbon),
	)

	s.metrics.BatchProcessed(metrics.OutcomeScheduled, len(result.Schedule))
	s.retrier.Reset()
	s.setState(StateIdle)
	return 0
}

// drain pops up to BatchSize job ids in FIFO order
func (s *Scheduler) drain(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, s.cfg.BatchSize)
	for len(ids) < s.cfg.BatchSize {
		id, err := s.store.Pop(ctx)
		if errors.Is(err, repository.ErrQueueEmpty) {
			break
		}
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolve loads the job definitions concurrently, keeping queue order.
// Ids without a definition are dropped.
func (s *Scheduler) resolve(ctx context.Context, ids []string) []model.Job {
	results := concurrent.Map(ctx, ids, resolveConcurrency, s.store.GetJob)

	jobs := make([]model.Job, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn("skipping unresolvable job",
				slog.String("job_id", ids[r.Index]),
				slog.String("error", r.Err.Error()),
			)
			continue
		}
		jobs = append(jobs, *r.Value)
	}
	return jobs
}

// persist writes a scheduled record per entry and a failed record per rejected job
func (s *Scheduler) persist(ctx context.Context, result *model.OptimizationResult) error {
	solvedAt := time.Now().UTC()
	var errs *multierror.Error

	for i := range result.Schedule {
		entry := result.Schedule[i]
		record := &model.ScheduleRecord{
			JobID:        entry.JobID,
			Status:       model.ScheduleStatusScheduled,
			Entry:        &entry,
			SolverStatus: result.SolverStatus,
			SolvedAt:     solvedAt,
		}
		if err := s.store.PutSchedule(ctx, record, s.cfg.Retention); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	for _, r := range result.Rejected {
		if r.Kind != "job" || r.ID == "" {
			continue
		}
		record := &model.ScheduleRecord{
			JobID:        r.ID,
			Status:       model.ScheduleStatusFailed,
			SolverStatus: fmt.Sprintf("%s: %s", model.StatusInvalidInput, r.Reason),
			SolvedAt:     solvedAt,
		}
		if err := s.store.PutSchedule(ctx, record, s.cfg.Retention); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil()
}

// partition splits jobs into those with at least one allowed placement and
// those without, keeping order
func (s *Scheduler) partition(jobs []model.Job, datacenters []model.Datacenter) (placeable, unplaceable []model.Job) {
	ids := s.optimizer.Unplaceable(jobs, datacenters, s.cfg.HorizonHours)
	if len(ids) == 0 {
		return jobs, nil
	}

	stuck := make(map[string]bool, len(ids))
	for _, id := range ids {
		stuck[id] = true
	}
	for i := range jobs {
		if stuck[jobs[i].ID] {
			unplaceable = append(unplaceable, jobs[i])
		} else {
			placeable = append(placeable, jobs[i])
		}
	}
	return placeable, unplaceable
}

// fail records the batch as failed and returns the backoff delay
func (s *Scheduler) fail(ctx context.Context, jobs []model.Job, status string) time.Duration {
	s.setState(StateBackoff)
	s.markFailed(ctx, jobs, status)
	s.metrics.BatchProcessed(metrics.OutcomeFailed, 0)

	delay := s.retrier.NextBackOff()
	s.logger.Warn("backing off",
		slog.String("status", status),
		slog.Int("jobs", len(jobs)),
		slog.Duration("delay", delay),
	)
	return delay
}

// markFailed writes a failed record per job; write errors are only logged
func (s *Scheduler) markFailed(ctx context.Context, jobs []model.Job, status string) {
	solvedAt := time.Now().UTC()
	for i := range jobs {
		record := &model.ScheduleRecord{
			JobID:        jobs[i].ID,
			Status:       model.ScheduleStatusFailed,
			SolverStatus: status,
			SolvedAt:     solvedAt,
		}
		if err := s.store.PutSchedule(ctx, record, s.cfg.Retention); err != nil {
			s.logger.Warn("failed to record failed job",
				slog.String("job_id", jobs[i].ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
