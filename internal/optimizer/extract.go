package optimizer

import (
	"fmt"
	"sort"

	"github.com/kirychukyurii/gridsynapse/internal/model"
)

const chosenThreshold = 0.5

// extract rebuilds the schedule from solved variable values. Costs use the
// real duration of each job. Entries are ordered by start hour, then job id.
func (p *Problem) extract(values []float64) ([]model.ScheduleEntry, error) {
	if len(values) != p.NumVariables() {
		return nil, fmt.Errorf("solver returned %d values for %d variables", len(values), p.NumVariables())
	}

	assigned := make([]int, len(p.Jobs))
	schedule := make([]model.ScheduleEntry, 0, len(p.Jobs))

	for i, v := range values {
		if v <= chosenThreshold {
			continue
		}
		j, d, t := p.Decode(i)
		job := &p.Jobs[j]
		dc := &p.Datacenters[d]
		units := float64(job.ComputeUnits) * job.DurationHours

		assigned[j]++
		schedule = append(schedule, model.ScheduleEntry{
			JobID:        job.ID,
			DatacenterID: dc.ID,
			StartHour:    t,
			EndHour:      float64(t) + job.DurationHours,
			Cost:         units * dc.PriceAt(t),
			Carbon:       units * dc.CarbonAt(t),
			Revenue:      units * job.Value,
		})
	}

	for j, count := range assigned {
		if count != 1 {
			return nil, fmt.Errorf("incomplete assignment: job %s has %d placements", p.Jobs[j].ID, count)
		}
	}

	sort.Slice(schedule, func(a, b int) bool {
		if schedule[a].StartHour != schedule[b].StartHour {
			return schedule[a].StartHour < schedule[b].StartHour
		}
		return schedule[a].JobID < schedule[b].JobID
	})

	return schedule, nil
}

// totals sums the per-entry fields
func totals(schedule []model.ScheduleEntry) (cost, carbon, revenue float64) {
	for _, e := range schedule {
		cost += e.Cost
		carbon += e.Carbon
		revenue += e.Revenue
	}
	return cost, carbon, revenue
}
