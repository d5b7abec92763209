package model

// OptimizeRequest is a one-shot optimization. Omitted fields fall back to
// the configured datacenters, horizon and carbon weight.
type OptimizeRequest struct {
	Jobs         []Job        `json:"jobs"`
	Datacenters  []Datacenter `json:"datacenters,omitempty"`
	HorizonHours *int         `json:"horizon_hours,omitempty"`
	CarbonWeight *float64     `json:"carbon_weight,omitempty"`
}
