package optimizer

// placementCost is the monetary cost of starting job j on datacenter d at hour t
func (p *Problem) placementCost(j, d, t int) float64 {
	return float64(p.Jobs[j].ComputeUnits) * p.Datacenters[d].PriceAt(t)
}

// placementCarbon is the carbon term of starting job j on datacenter d at hour t
func (p *Problem) placementCarbon(j, d, t int) float64 {
	return float64(p.Jobs[j].ComputeUnits) * p.Datacenters[d].CarbonAt(t)
}

// revenue does not depend on placement
func (p *Problem) revenue(j int) float64 {
	return p.Jobs[j].Value * float64(p.Jobs[j].ComputeUnits)
}

// Coefficient is the objective weight of decision (j, d, t):
// (cost - revenue) + carbonWeight*carbon.
func (p *Problem) Coefficient(j, d, t int) float64 {
	return p.placementCost(j, d, t) - p.revenue(j) + p.CarbonWeight*p.placementCarbon(j, d, t)
}

func (p *Problem) objective() []float64 {
	cost := make([]float64, p.NumVariables())
	for i := range cost {
		cost[i] = p.Coefficient(p.Decode(i))
	}
	return cost
}
