package model

// Node represents a Nomad client node that contributes capacity to a datacenter
type Node struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Datacenter            string `json:"datacenter"`
	Drain                 bool   `json:"drain"`
	SchedulingEligibility string `json:"scheduling_eligibility"` // "eligible" or "ineligible"
	Status                string `json:"status"`                 // "ready", "down", "initializing"
}

// IsReady returns true if node can accept new allocations
// A node is ready when it's up, not draining AND is eligible for scheduling
func (n *Node) IsReady() bool {
	return n.Status == "ready" && !n.Drain && n.SchedulingEligibility == "eligible"
}
