package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirychukyurii/gridsynapse/internal/metrics"
	"github.com/kirychukyurii/gridsynapse/internal/model"
	"github.com/kirychukyurii/gridsynapse/internal/repository"
	"github.com/kirychukyurii/gridsynapse/internal/solver"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// ErrInvalidJob wraps the validation errors of a rejected submission
var ErrInvalidJob = errors.New("invalid job")

// Optimizer runs a one-shot optimization
type Optimizer interface {
	Optimize(ctx context.Context, jobs []model.Job, datacenters []model.Datacenter, horizonHours int, carbonWeight float64) *model.OptimizationResult
}

// nomadHealth is implemented by datacenter sources backed by Nomad clusters
type nomadHealth interface {
	CheckHealth(ctx context.Context) map[string]error
}

// SchedulingService defines the operations exposed over HTTP
type SchedulingService interface {
	SubmitJob(ctx context.Context, job *model.Job) (*model.SubmitResult, error)
	GetJob(ctx context.Context, id string) (*model.JobStatus, error)
	Optimize(ctx context.Context, req *model.OptimizeRequest) (*model.OptimizationResult, error)
	ListDatacenters(ctx context.Context) ([]model.Datacenter, error)
	Health(ctx context.Context) *model.Health
}

// Options holds the defaults applied to submissions and one-shot requests
type Options struct {
	JobTTL       time.Duration
	HorizonHours int
	CarbonWeight float64
	Solver       string
}

// schedulingService implements SchedulingService interface
type schedulingService struct {
	store       repository.Store
	datacenters repository.DatacenterSource
	optimizer   Optimizer
	opts        Options
	metrics     *metrics.Metrics
	logger      *slog.Logger
	startedAt   time.Time
}

// NewSchedulingService creates a new scheduling service
func NewSchedulingService(
	store repository.Store,
	datacenters repository.DatacenterSource,
	optimizer Optimizer,
	opts Options,
	m *metrics.Metrics,
	logger *slog.Logger,
) SchedulingService {
	return &schedulingService{
		store:       store,
		datacenters: datacenters,
		optimizer:   optimizer,
		opts:        opts,
		metrics:     m,
		logger:      logger,
		startedAt:   time.Now(),
	}
}

// SubmitJob validates, stores and enqueues a job. An empty id is replaced by a uuid.
func (s *schedulingService) SubmitJob(ctx context.Context, job *model.Job) (*model.SubmitResult, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.SubmittedAt = time.Now().UTC()

	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	if err := s.store.PutJob(ctx, job, s.opts.JobTTL); err != nil {
		return nil, fmt.Errorf("failed to store job: %w", err)
	}

	length, err := s.store.Enqueue(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.metrics.JobSubmitted()

	s.logger.Info("job submitted",
		slog.String("job_id", job.ID),
		slog.Int("compute_units", job.ComputeUnits),
		slog.Bool("carbon_neutral", job.CarbonNeutral),
		slog.Int64("queue_length", length),
	)

	return &model.SubmitResult{
		JobID:       job.ID,
		Status:      "queued",
		QueueLength: length,
	}, nil
}

// GetJob returns the job definition and its schedule record, if one exists yet
func (s *schedulingService) GetJob(ctx context.Context, id string) (*model.JobStatus, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	record, err := s.store.GetSchedule(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrScheduleNotFound) {
		return nil, fmt.Errorf("failed to read schedule: %w", err)
	}

	return &model.JobStatus{
		Job:      job,
		Schedule: record,
	}, nil
}

// Optimize runs a one-shot optimization, outside the queue
func (s *schedulingService) Optimize(ctx context.Context, req *model.OptimizeRequest) (*model.OptimizationResult, error) {
	datacenters := req.Datacenters
	if len(datacenters) == 0 {
		var err error
		datacenters, err = s.datacenters.ListDatacenters(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list datacenters: %w", err)
		}
	}

	horizon := s.opts.HorizonHours
	if req.HorizonHours != nil {
		horizon = *req.HorizonHours
	}
	weight := s.opts.CarbonWeight
	if req.CarbonWeight != nil {
		weight = *req.CarbonWeight
	}

	result := s.optimizer.Optimize(ctx, req.Jobs, datacenters, horizon, weight)
	s.metrics.ObserveOptimization(result.SolverStatus, result.SolveTime)

	return result, nil
}

// ListDatacenters returns the current datacenter state
func (s *schedulingService) ListDatacenters(ctx context.Context) ([]model.Datacenter, error) {
	return s.datacenters.ListDatacenters(ctx)
}

// Health reports the store, solver and Nomad clusters
func (s *schedulingService) Health(ctx context.Context) *model.Health {
	services := make(map[string]string)
	healthy := true

	check := func(name string, err error) {
		if err != nil {
			s.logger.Warn("health check failed",
				slog.String("service", name),
				slog.String("error", err.Error()),
			)
			services[name] = "unhealthy"
			healthy = false
			return
		}
		services[name] = "healthy"
	}

	check(s.store.Name(), s.store.Ping(ctx))

	_, err := solver.New(s.opts.Solver, solver.Options{})
	check("solver", err)

	if nh, ok := s.datacenters.(nomadHealth); ok {
		for dc, err := range nh.CheckHealth(ctx) {
			check("nomad:"+dc, err)
		}
	}

	status := "healthy"
	if !healthy {
		status = "degraded"
	}

	return &model.Health{
		Status:        status,
		Version:       Version,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Services:      services,
	}
}
