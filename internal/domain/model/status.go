package model

// StatusReport is the aggregate scheduler status served to external status
// endpoints. Counts come from live queries; the offer numbers come from the
// last snapshot the dispatcher published and may lag.
type StatusReport struct {
	QueueLength   int              `json:"queueLength"`
	RunningLength int              `json:"runningLength"`
	TotalUsed     ResourceQuantity `json:"totalUsed"`
	NumSlaves     int              `json:"numSlaves"`
	Offers        int              `json:"offers"`
	TotalOffered  ResourceQuantity `json:"totalOffered"`
	Version       string           `json:"version"`
}
