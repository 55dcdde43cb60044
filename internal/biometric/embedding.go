// Package biometric turns camera frames into a staff identity with a bounded,
// cancellable retry loop.
package biometric

import (
	"math"

	id "kiosk/pkg/domain"
)

// Embedding is a fixed-length face descriptor.
type Embedding []float64

// Distance is the Euclidean distance between two descriptors. Descriptors of
// different lengths are infinitely far apart.
func Distance(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Template is one registered descriptor for a staff member. A staff member
// may have several.
type Template struct {
	StaffID   id.StaffID
	Embedding Embedding
}

// Gallery is the set of registered templates a sample is compared against.
type Gallery []Template

// Nearest returns the staff member whose template is closest to e.
// ok is false when the gallery is empty.
func (g Gallery) Nearest(e Embedding) (staffID id.StaffID, distance float64, ok bool) {
	distance = math.Inf(1)
	for _, t := range g {
		if d := Distance(e, t.Embedding); d < distance {
			staffID, distance, ok = t.StaffID, d, true
		}
	}
	return staffID, distance, ok
}
