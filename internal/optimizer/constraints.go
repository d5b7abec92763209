package optimizer

import (
	"github.com/kirychukyurii/gridsynapse/internal/model"
	"github.com/kirychukyurii/gridsynapse/internal/solver"
)

// fixedVariables marks decisions forced to zero. A start is allowed only if
// the job fits the horizon, starts inside its flexibility window, fits the
// datacenter at all and, for carbon-neutral jobs, every occupied hour is
// below the carbon threshold.
func (p *Problem) fixedVariables() []bool {
	fixed := make([]bool, p.NumVariables())
	for j := range p.Jobs {
		job := &p.Jobs[j]
		for d := range p.Datacenters {
			dc := &p.Datacenters[d]
			for t := 0; t < p.Horizon; t++ {
				fixed[p.Index(j, d, t)] = !p.startAllowed(job, dc, t)
			}
		}
	}
	return fixed
}

func (p *Problem) startAllowed(job *model.Job, dc *model.Datacenter, t int) bool {
	if float64(t)+job.DurationHours > float64(p.Horizon) {
		return false
	}
	occupied := p.occupiedHours(job)
	if t > job.FlexibilityWindow {
		return false
	}
	if job.ComputeUnits > dc.CapacityUnits {
		return false
	}
	if job.CarbonNeutral {
		for h := t; h < t+occupied; h++ {
			if dc.CarbonAt(h) >= p.CarbonThreshold {
				return false
			}
		}
	}
	return true
}

// placeable reports whether job j has at least one allowed start
func (p *Problem) placeable(j int) bool {
	job := &p.Jobs[j]
	for d := range p.Datacenters {
		for t := 0; t < p.Horizon; t++ {
			if p.startAllowed(job, &p.Datacenters[d], t) {
				return true
			}
		}
	}
	return false
}

// capacityRows bounds, for every datacenter and hour, the compute units of
// all jobs whose occupied interval [s, s+occupied) covers that hour.
func (p *Problem) capacityRows(fixed []bool) []solver.Row {
	rows := make([]solver.Row, 0, len(p.Datacenters)*p.Horizon)
	for d := range p.Datacenters {
		for h := 0; h < p.Horizon; h++ {
			var row solver.Row
			for j := range p.Jobs {
				job := &p.Jobs[j]
				for s := max(0, h-p.occupiedHours(job)+1); s <= h; s++ {
					i := p.Index(j, d, s)
					if fixed[i] {
						continue
					}
					row.Vars = append(row.Vars, i)
					row.Coefs = append(row.Coefs, float64(job.ComputeUnits))
				}
			}
			if len(row.Vars) == 0 {
				continue
			}
			row.Limit = float64(p.Datacenters[d].CapacityUnits)
			rows = append(rows, row)
		}
	}
	return rows
}
