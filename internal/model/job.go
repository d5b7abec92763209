package model

import (
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Job represents a compute workload waiting to be placed
type Job struct {
	ID                string    `json:"id"`
	ComputeUnits      int       `json:"compute_units"`      // concurrent resource units, e.g. accelerators
	DurationHours     float64   `json:"duration_hours"`     // expected run time
	FlexibilityWindow int       `json:"flexibility_window"` // latest permissible start offset in hours
	CarbonNeutral     bool      `json:"carbon_neutral"`     // run only below the carbon threshold
	Value             float64   `json:"value"`              // revenue per compute-unit-hour
	SubmittedAt       time.Time `json:"submitted_at,omitempty"`
}

// Validate reports every field that makes the job unschedulable
func (j *Job) Validate() error {
	var result *multierror.Error

	if j.ID == "" {
		result = multierror.Append(result, fmt.Errorf("id is required"))
	}
	if j.ComputeUnits <= 0 {
		result = multierror.Append(result, fmt.Errorf("compute_units must be positive, got %d", j.ComputeUnits))
	}
	if j.DurationHours <= 0 || math.IsNaN(j.DurationHours) || math.IsInf(j.DurationHours, 0) {
		result = multierror.Append(result, fmt.Errorf("duration_hours must be a positive finite number, got %g", j.DurationHours))
	}
	if j.FlexibilityWindow < 0 {
		result = multierror.Append(result, fmt.Errorf("flexibility_window must not be negative, got %d", j.FlexibilityWindow))
	}
	if j.Value < 0 || math.IsNaN(j.Value) || math.IsInf(j.Value, 0) {
		result = multierror.Append(result, fmt.Errorf("value must be a non-negative finite number, got %g", j.Value))
	}

	return result.ErrorOrNil()
}
