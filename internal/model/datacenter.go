package model

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Datacenter represents a placement target with its hourly price and carbon profile.
// Both profiles repeat cyclically, so hour h reads index h mod len.
type Datacenter struct {
	ID              string    `json:"id"`
	CapacityUnits   int       `json:"capacity_units"`
	Location        string    `json:"location"`
	Prices          []float64 `json:"prices"`           // price per compute-unit-hour
	CarbonIntensity []float64 `json:"carbon_intensity"` // gCO2/kWh
}

// PriceAt returns the price for the given hour offset
func (d *Datacenter) PriceAt(hour int) float64 {
	return d.Prices[hour%len(d.Prices)]
}

// CarbonAt returns the carbon intensity for the given hour offset
func (d *Datacenter) CarbonAt(hour int) float64 {
	return d.CarbonIntensity[hour%len(d.CarbonIntensity)]
}

// Validate reports every field that makes the datacenter unusable for a solve
func (d *Datacenter) Validate() error {
	var result *multierror.Error

	if d.ID == "" {
		result = multierror.Append(result, fmt.Errorf("id is required"))
	}
	if d.CapacityUnits <= 0 {
		result = multierror.Append(result, fmt.Errorf("capacity_units must be positive, got %d", d.CapacityUnits))
	}
	if len(d.Prices) == 0 {
		result = multierror.Append(result, fmt.Errorf("prices must not be empty"))
	}
	if len(d.CarbonIntensity) == 0 {
		result = multierror.Append(result, fmt.Errorf("carbon_intensity must not be empty"))
	}

	return result.ErrorOrNil()
}
