package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/gridsynapse/internal/model"
)

func smallProblem() *Problem {
	jobs := []model.Job{
		{ID: "a", ComputeUnits: 40, DurationHours: 1.5, FlexibilityWindow: 1, Value: 2},
		{ID: "b", ComputeUnits: 80, DurationHours: 1, FlexibilityWindow: 3, CarbonNeutral: true, Value: 1},
	}
	dcs := []model.Datacenter{
		{ID: "x", CapacityUnits: 100, Prices: []float64{0.5, 0.25}, CarbonIntensity: []float64{50, 150}},
		{ID: "y", CapacityUnits: 60, Prices: []float64{1}, CarbonIntensity: []float64{10}},
	}
	return NewProblem(jobs, dcs, 4, 0.5, DefaultCarbonThreshold)
}

func TestProblemIndexDecode(t *testing.T) {
	p := smallProblem()
	require.Equal(t, 16, p.NumVariables())

	seen := make(map[int]bool)
	for j := range p.Jobs {
		for d := range p.Datacenters {
			for h := 0; h < p.Horizon; h++ {
				i := p.Index(j, d, h)
				assert.False(t, seen[i], "index %d reused", i)
				seen[i] = true

				gj, gd, gh := p.Decode(i)
				assert.Equal(t, []int{j, d, h}, []int{gj, gd, gh})
			}
		}
	}
}

func TestProblemCoefficient(t *testing.T) {
	p := smallProblem()

	// 40*0.25 - 2*40 + 0.5*40*150
	assert.InDelta(t, 10-80+3000.0, p.Coefficient(0, 0, 1), 1e-9)
	// price and carbon profiles repeat
	assert.Equal(t, p.Coefficient(0, 0, 1), p.Coefficient(0, 0, 3))
}

func TestProblemFixedVariables(t *testing.T) {
	p := smallProblem()
	fixed := p.fixedVariables()

	tests := []struct {
		name        string
		j, d, t     int
		wantAllowed bool
	}{
		{name: "inside window", j: 0, d: 0, t: 1, wantAllowed: true},
		{name: "after window", j: 0, d: 0, t: 2},
		{name: "carbon profile repeats", j: 1, d: 0, t: 3},
		{name: "over datacenter capacity", j: 1, d: 1, t: 0},
		{name: "carbon neutral at clean hour", j: 1, d: 0, t: 2, wantAllowed: true},
		{name: "carbon neutral at dirty hour", j: 1, d: 0, t: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, !tt.wantAllowed, fixed[p.Index(tt.j, tt.d, tt.t)])
		})
	}
}

func TestProblemCapacityRows(t *testing.T) {
	p := smallProblem()
	program := p.Program()

	require.NoError(t, program.Validate())
	assert.Equal(t, len(p.Jobs), program.Groups)

	// job a occupies two hours, so hour 1 on x is shared by its starts at 0 and 1
	shared := false
	for _, row := range program.Capacity {
		if row.Limit == 100 && containsAll(row.Vars, p.Index(0, 0, 0), p.Index(0, 0, 1)) {
			shared = true
		}
	}
	assert.True(t, shared)

	for _, row := range program.Capacity {
		for _, v := range row.Vars {
			assert.False(t, program.Fixed[v], "fixed variable %d in capacity row", v)
		}
	}
}

func containsAll(vars []int, want ...int) bool {
	set := make(map[int]bool, len(vars))
	for _, v := range vars {
		set[v] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
