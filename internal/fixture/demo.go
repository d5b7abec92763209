// Package fixture holds the demo scenario used by the -demo flag and tests.
package fixture

import "github.com/kirychukyurii/gridsynapse/internal/model"

// repeat tiles an hourly pattern n times
func repeat(pattern []float64, n int) []float64 {
	out := make([]float64, 0, len(pattern)*n)
	for i := 0; i < n; i++ {
		out = append(out, pattern...)
	}
	return out
}

// DemoJobs is a mix of AI workloads
func DemoJobs() []model.Job {
	return []model.Job{
		{ID: "llm-training-1", ComputeUnits: 100, DurationHours: 4, FlexibilityWindow: 12, CarbonNeutral: true, Value: 50},
		{ID: "inference-batch-1", ComputeUnits: 50, DurationHours: 2, FlexibilityWindow: 24, CarbonNeutral: false, Value: 30},
		{ID: "fine-tuning-1", ComputeUnits: 75, DurationHours: 3, FlexibilityWindow: 8, CarbonNeutral: true, Value: 40},
		{ID: "embedding-gen-1", ComputeUnits: 25, DurationHours: 1, FlexibilityWindow: 24, CarbonNeutral: false, Value: 20},
		{ID: "model-serving-1", ComputeUnits: 150, DurationHours: 6, FlexibilityWindow: 6, CarbonNeutral: true, Value: 60},
	}
}

// DemoDatacenters returns three US sites with 24 hourly samples each
func DemoDatacenters() []model.Datacenter {
	return []model.Datacenter{
		{
			ID:              "us-west-2a",
			CapacityUnits:   300,
			Location:        "Oregon",
			Prices:          repeat([]float64{0.08, 0.09, 0.10, 0.12, 0.15, 0.14, 0.12, 0.10}, 3),
			CarbonIntensity: repeat([]float64{50, 60, 70, 80, 90, 85, 75, 65}, 3), // hydro
		},
		{
			ID:              "us-east-1a",
			CapacityUnits:   250,
			Location:        "Virginia",
			Prices:          repeat([]float64{0.10, 0.11, 0.13, 0.15, 0.18, 0.17, 0.14, 0.12}, 3),
			CarbonIntensity: repeat([]float64{120, 130, 140, 150, 160, 155, 145, 135}, 3),
		},
		{
			ID:              "us-central-1a",
			CapacityUnits:   200,
			Location:        "Iowa",
			Prices:          repeat([]float64{0.07, 0.08, 0.09, 0.11, 0.13, 0.12, 0.10, 0.09}, 3),
			CarbonIntensity: repeat([]float64{30, 35, 40, 45, 50, 48, 42, 38}, 3), // wind
		},
	}
}
