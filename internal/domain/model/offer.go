package model

// Offer is a quantum of cluster resources made available by the broker. An
// offer stays valid until it is launched against or declined.
type Offer struct {
	ID        string           `json:"id"`
	AgentID   string           `json:"agentId"`
	Resources ResourceQuantity `json:"resources"`
}

// OfferSnapshot is the reporter's view of the offers last seen by the
// dispatcher. It is advisory only and may be stale.
type OfferSnapshot struct {
	Count        int              `json:"count"`
	NumAgents    int              `json:"numAgents"`
	TotalOffered ResourceQuantity `json:"totalOffered"`
	TakenAt      string           `json:"takenAt"`
}

// SnapshotOffers aggregates a set of offers into a reporter snapshot.
func SnapshotOffers(offers []Offer, at string) OfferSnapshot {
	agents := make(map[string]struct{}, len(offers))
	var total ResourceQuantity
	for _, o := range offers {
		total.Add(o.Resources)
		if o.AgentID != "" {
			agents[o.AgentID] = struct{}{}
		}
	}
	return OfferSnapshot{
		Count:        len(offers),
		NumAgents:    len(agents),
		TotalOffered: total,
		TakenAt:      at,
	}
}
