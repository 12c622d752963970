package engine

import "math"

// DefaultBedOccupancy is the share of beds assumed taken by other patients.
const DefaultBedOccupancy = 0.66

// AvailableBeds returns floor((1 - occupancy) × totalBeds).
func AvailableBeds(totalBeds int, occupancy float64) int {
	if totalBeds <= 0 {
		return 0
	}
	if occupancy < 0 {
		occupancy = 0
	}
	if occupancy > 1 {
		occupancy = 1
	}
	// 1-0.66 is 0.33999…, the epsilon keeps 100 beds at 34 rather than 33.
	return int(math.Floor((1-occupancy)*float64(totalBeds) + 1e-9))
}

// admissionGate tracks bed occupancy for one track on one day.
type admissionGate struct {
	capacity int
	occupied int
	refused  int
}

func newAdmissionGate(capacity int) *admissionGate {
	return &admissionGate{capacity: capacity}
}

// hold registers a patient admitted on an earlier day. Admission is sticky,
// so held patients are never turned away.
func (g *admissionGate) hold() {
	g.occupied++
}

// admit grants a bed when one is free.
func (g *admissionGate) admit() bool {
	if g.occupied < g.capacity {
		g.occupied++
		return true
	}
	g.refused++
	return false
}
