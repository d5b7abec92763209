package model

import (
	"encoding/json"
	"time"
)

// Solver status labels reported in OptimizationResult.SolverStatus
const (
	StatusOptimal           = "OPTIMAL"
	StatusFeasible          = "FEASIBLE" // deadline reached, best incumbent returned
	StatusInfeasible        = "INFEASIBLE"
	StatusUnbounded         = "UNBOUNDED"
	StatusTimeout           = "TIMEOUT"
	StatusSolverUnavailable = "SOLVER_UNAVAILABLE"
	StatusInvalidInput      = "INVALID_INPUT"
	StatusError             = "ERROR"
)

// ScheduleEntry is a single placement decision
type ScheduleEntry struct {
	JobID        string  `json:"job_id"`
	DatacenterID string  `json:"datacenter_id"`
	StartHour    int     `json:"start_hour"`
	EndHour      float64 `json:"end_hour"`
	Cost         float64 `json:"cost"`
	Carbon       float64 `json:"carbon"`
	Revenue      float64 `json:"revenue"`
}

// Rejection describes an input excluded from a solve before constraint construction
type Rejection struct {
	Kind   string `json:"kind"` // job | datacenter
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// SolveStats describes the size of the solved program
type SolveStats struct {
	Variables     int `json:"variables"`
	FreeVariables int `json:"free_variables"`
	CapacityRows  int `json:"capacity_rows"`
	Nodes         int `json:"nodes"`
}

// OptimizationResult is the outcome of a single Optimize call
type OptimizationResult struct {
	Success      bool            `json:"success"`
	SolveTime    time.Duration   `json:"-"`
	TotalCost    float64         `json:"total_cost"`
	TotalCarbon  float64         `json:"total_carbon"`
	TotalRevenue float64         `json:"total_revenue"`
	Schedule     []ScheduleEntry `json:"schedule"`
	SolverStatus string          `json:"solver_status"`
	Rejected     []Rejection     `json:"rejected,omitempty"`
	Stats        SolveStats      `json:"stats"`
}

// MarshalJSON adds solve_time_ms to the encoded result
func (r OptimizationResult) MarshalJSON() ([]byte, error) {
	type plain OptimizationResult
	return json.Marshal(struct {
		plain
		SolveTimeMs float64 `json:"solve_time_ms"`
	}{
		plain:       plain(r),
		SolveTimeMs: float64(r.SolveTime) / float64(time.Millisecond),
	})
}
