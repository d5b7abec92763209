package optimizer

import (
	"math"

	"github.com/kirychukyurii/gridsynapse/internal/model"
	"github.com/kirychukyurii/gridsynapse/internal/solver"
)

// Problem is the discrete assignment model of a single solve: one binary
// decision per (job, datacenter, start hour), stored densely at offset
// (j*D + d)*H + t.
type Problem struct {
	Jobs            []model.Job
	Datacenters     []model.Datacenter
	Horizon         int
	CarbonWeight    float64
	CarbonThreshold float64
}

// NewProblem builds the model. Inputs are read, never modified.
func NewProblem(jobs []model.Job, datacenters []model.Datacenter, horizon int, carbonWeight, carbonThreshold float64) *Problem {
	return &Problem{
		Jobs:            jobs,
		Datacenters:     datacenters,
		Horizon:         horizon,
		CarbonWeight:    carbonWeight,
		CarbonThreshold: carbonThreshold,
	}
}

// NumVariables returns the size of the decision vector
func (p *Problem) NumVariables() int {
	return len(p.Jobs) * len(p.Datacenters) * p.Horizon
}

// Index returns the offset of decision (j, d, t)
func (p *Problem) Index(j, d, t int) int {
	return (j*len(p.Datacenters)+d)*p.Horizon + t
}

// Decode is the inverse of Index
func (p *Problem) Decode(i int) (j, d, t int) {
	t = i % p.Horizon
	i /= p.Horizon
	return i / len(p.Datacenters), i % len(p.Datacenters), t
}

// occupiedHours is the number of whole hours a job holds capacity inside
// the horizon. Partial hours count as full ones; a job longer than the
// horizon is capped at the horizon so the conversion cannot overflow.
func (p *Problem) occupiedHours(job *model.Job) int {
	if job.DurationHours >= float64(p.Horizon) {
		return p.Horizon
	}
	return int(math.Ceil(job.DurationHours))
}

// Program assembles the objective and constraints for the solver
func (p *Problem) Program() *solver.Program {
	n := p.NumVariables()
	group := make([]int, n)
	for i := range group {
		j, _, _ := p.Decode(i)
		group[i] = j
	}

	fixed := p.fixedVariables()

	return &solver.Program{
		Cost:     p.objective(),
		Group:    group,
		Groups:   len(p.Jobs),
		Fixed:    fixed,
		Capacity: p.capacityRows(fixed),
	}
}
