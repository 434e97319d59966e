package model

import "fmt"

// ResourceQuantity is a bundle of schedulable resources. It is used both for
// job requirements and for aggregate reporting (total offered, total used).
type ResourceQuantity struct {
	CPU   int `json:"cpu"`
	MemMB int `json:"memMB"`
	GPU   int `json:"gpu"`
	Ports int `json:"ports"`
}

// Add accumulates other into q.
func (q *ResourceQuantity) Add(other ResourceQuantity) {
	q.CPU += other.CPU
	q.MemMB += other.MemMB
	q.GPU += other.GPU
	q.Ports += other.Ports
}

// Fits reports whether a demand of size q can be satisfied by avail.
func (q ResourceQuantity) Fits(avail ResourceQuantity) bool {
	return q.CPU <= avail.CPU &&
		q.MemMB <= avail.MemMB &&
		q.GPU <= avail.GPU &&
		q.Ports <= avail.Ports
}

// Sub removes other from q. Callers must have checked Fits first.
func (q *ResourceQuantity) Sub(other ResourceQuantity) {
	q.CPU -= other.CPU
	q.MemMB -= other.MemMB
	q.GPU -= other.GPU
	q.Ports -= other.Ports
}

func (q ResourceQuantity) String() string {
	return fmt.Sprintf("cpu=%d,mem=%dMB,gpu=%d,ports=%d", q.CPU, q.MemMB, q.GPU, q.Ports)
}
