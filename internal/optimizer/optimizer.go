// Package optimizer places jobs on datacenters over a time horizon by solving
// a binary program that blends monetary cost, revenue and carbon emissions.
package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirychukyurii/gridsynapse/internal/model"
	"github.com/kirychukyurii/gridsynapse/internal/solver"
)

const (
	// DefaultCarbonThreshold is the carbon intensity (gCO2/kWh) a
	// carbon-neutral job must stay below for every hour it runs
	DefaultCarbonThreshold = 100.0

	DefaultMaxHorizonHours = 720
	DefaultMaxVariables    = 100_000

	// DefaultMaxMatrixCells bounds the dense relaxation matrix, rows x columns
	DefaultMaxMatrixCells = 20_000_000
)

// Options configures an Optimizer. Zero limits take their defaults.
type Options struct {
	Solver          string        // backend name, see solver.Backends
	CarbonThreshold float64       // 0 means DefaultCarbonThreshold
	Deadline        time.Duration // 0 means no deadline beyond the caller's context
	MaxNodes        int           // branch and bound node budget, 0 means unlimited
	MaxHorizonHours int
	MaxVariables    int // jobs x datacenters x horizon hours
	MaxMatrixCells  int
}

// Optimizer runs one-shot optimizations. It holds only immutable options and
// builds a fresh problem and solver per call, so it is safe for concurrent use.
type Optimizer struct {
	opts   Options
	logger *slog.Logger
}

// New creates an optimizer
func New(opts Options, logger *slog.Logger) *Optimizer {
	if opts.CarbonThreshold <= 0 {
		opts.CarbonThreshold = DefaultCarbonThreshold
	}
	if opts.MaxHorizonHours <= 0 {
		opts.MaxHorizonHours = DefaultMaxHorizonHours
	}
	if opts.MaxVariables <= 0 {
		opts.MaxVariables = DefaultMaxVariables
	}
	if opts.MaxMatrixCells <= 0 {
		opts.MaxMatrixCells = DefaultMaxMatrixCells
	}
	return &Optimizer{
		opts:   opts,
		logger: logger,
	}
}

// Optimize schedules every job exactly once. Failures are reported in the
// returned result with Success=false and a status label; Optimize never panics.
func (o *Optimizer) Optimize(ctx context.Context, jobs []model.Job, datacenters []model.Datacenter, horizonHours int, carbonWeight float64) (result *model.OptimizationResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("optimization panicked",
				slog.String("panic", fmt.Sprint(r)),
			)
			result = failed(fmt.Sprintf("%s: %v", model.StatusError, r), nil, 0)
		}
	}()

	if horizonHours <= 0 {
		return failed(fmt.Sprintf("%s: horizon_hours must be positive, got %d", model.StatusInvalidInput, horizonHours), nil, 0)
	}
	if horizonHours > o.opts.MaxHorizonHours {
		return failed(fmt.Sprintf("%s: horizon_hours %d exceeds the limit of %d", model.StatusInvalidInput, horizonHours, o.opts.MaxHorizonHours), nil, 0)
	}

	jobs, datacenters, rejected := sanitize(jobs, datacenters)
	for _, r := range rejected {
		o.logger.Warn("excluded from optimization",
			slog.String("kind", r.Kind),
			slog.String("id", r.ID),
			slog.String("reason", r.Reason),
		)
	}

	if n := len(jobs) * len(datacenters) * horizonHours; n > o.opts.MaxVariables {
		return failed(fmt.Sprintf("%s: %d decision variables exceed the limit of %d", model.StatusInvalidInput, n, o.opts.MaxVariables), rejected, 0)
	}

	backend, err := solver.New(o.opts.Solver, solver.Options{MaxNodes: o.opts.MaxNodes})
	if err != nil {
		o.logger.Error("failed to create solver",
			slog.String("solver", o.opts.Solver),
			slog.String("error", err.Error()),
		)
		return failed(fmt.Sprintf("%s: %v", model.StatusSolverUnavailable, err), rejected, 0)
	}

	problem := NewProblem(jobs, datacenters, horizonHours, carbonWeight, o.opts.CarbonThreshold)
	program := problem.Program()
	stats := model.SolveStats{
		Variables:     problem.NumVariables(),
		FreeVariables: program.FreeVariables(),
		CapacityRows:  len(program.Capacity),
	}

	// upper bound of the dense matrix a relaxation builds
	rows := program.Groups + stats.CapacityRows
	if cells := rows * (stats.FreeVariables + stats.CapacityRows); cells > o.opts.MaxMatrixCells {
		return failed(fmt.Sprintf("%s: problem needs up to %d matrix cells, limit is %d", model.StatusInvalidInput, cells, o.opts.MaxMatrixCells), rejected, 0)
	}

	if o.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Deadline)
		defer cancel()
	}

	o.logger.Info("solving optimization",
		slog.Int("jobs", len(jobs)),
		slog.Int("datacenters", len(datacenters)),
		slog.Int("horizon_hours", horizonHours),
		slog.Int("free_variables", stats.FreeVariables),
		slog.Int("capacity_rows", stats.CapacityRows),
	)

	started := time.Now()
	solution, err := backend.Solve(ctx, program)
	solveTime := time.Since(started)

	if err != nil {
		o.logger.Error("solver failed",
			slog.String("error", err.Error()),
			slog.Duration("solve_time", solveTime),
		)
		res := failed(fmt.Sprintf("%s: %v", model.StatusError, err), rejected, solveTime)
		res.Stats = stats
		return res
	}
	stats.Nodes = solution.Nodes

	if solution.Status != solver.StatusOptimal && solution.Status != solver.StatusFeasible {
		o.logger.Warn("optimization found no schedule",
			slog.String("status", solution.Status.String()),
			slog.Duration("solve_time", solveTime),
		)
		res := failed(solution.Status.String(), rejected, solveTime)
		res.Stats = stats
		return res
	}

	schedule, err := problem.extract(solution.Values)
	if err != nil {
		o.logger.Error("failed to extract schedule",
			slog.String("error", err.Error()),
		)
		res := failed(fmt.Sprintf("%s: %v", model.StatusError, err), rejected, solveTime)
		res.Stats = stats
		return res
	}

	cost, carbon, revenue := totals(schedule)

	o.logger.Info("optimization finished",
		slog.String("status", solution.Status.String()),
		slog.Duration("solve_time", solveTime),
		slog.Int("nodes", solution.Nodes),
		slog.Int("scheduled", len(schedule)),
	)

	return &model.OptimizationResult{
		Success:      true,
		SolveTime:    solveTime,
		TotalCost:    cost,
		TotalCarbon:  carbon,
		TotalRevenue: revenue,
		Schedule:     schedule,
		SolverStatus: solution.Status.String(),
		Rejected:     rejected,
		Stats:        stats,
	}
}

// Unplaceable returns the ids of valid jobs without a single allowed start on
// any datacenter inside the horizon. A batch holding one is infeasible as a
// whole, so callers can set such jobs aside and solve the rest.
func (o *Optimizer) Unplaceable(jobs []model.Job, datacenters []model.Datacenter, horizonHours int) []string {
	if horizonHours <= 0 || horizonHours > o.opts.MaxHorizonHours {
		return nil
	}

	jobs, datacenters, _ = sanitize(jobs, datacenters)
	problem := NewProblem(jobs, datacenters, horizonHours, 0, o.opts.CarbonThreshold)

	var ids []string
	for j := range problem.Jobs {
		if !problem.placeable(j) {
			ids = append(ids, problem.Jobs[j].ID)
		}
	}
	return ids
}

func failed(status string, rejected []model.Rejection, solveTime time.Duration) *model.OptimizationResult {
	return &model.OptimizationResult{
		Success:      false,
		SolveTime:    solveTime,
		Schedule:     []model.ScheduleEntry{},
		SolverStatus: status,
		Rejected:     rejected,
	}
}

// sanitize drops invalid or duplicate jobs and datacenters, keeping input order
func sanitize(jobs []model.Job, datacenters []model.Datacenter) ([]model.Job, []model.Datacenter, []model.Rejection) {
	var rejected []model.Rejection

	validJobs := make([]model.Job, 0, len(jobs))
	seenJobs := make(map[string]bool, len(jobs))
	for i := range jobs {
		job := jobs[i]
		if err := job.Validate(); err != nil {
			rejected = append(rejected, model.Rejection{Kind: "job", ID: job.ID, Reason: err.Error()})
			continue
		}
		if seenJobs[job.ID] {
			rejected = append(rejected, model.Rejection{Kind: "job", ID: job.ID, Reason: "duplicate id"})
			continue
		}
		seenJobs[job.ID] = true
		validJobs = append(validJobs, job)
	}

	validDCs := make([]model.Datacenter, 0, len(datacenters))
	seenDCs := make(map[string]bool, len(datacenters))
	for i := range datacenters {
		dc := datacenters[i]
		if err := dc.Validate(); err != nil {
			rejected = append(rejected, model.Rejection{Kind: "datacenter", ID: dc.ID, Reason: err.Error()})
			continue
		}
		if seenDCs[dc.ID] {
			rejected = append(rejected, model.Rejection{Kind: "datacenter", ID: dc.ID, Reason: "duplicate id"})
			continue
		}
		seenDCs[dc.ID] = true
		validDCs = append(validDCs, dc)
	}

	return validJobs, validDCs, rejected
}
