// Package geo implements great-circle distance checks for branch geofencing.
package geo

import (
	"math"

	dErrors "kiosk/pkg/domain-errors"
)

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate rejects coordinates outside the valid degree ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return dErrors.New(dErrors.CodeInvalidInput, "coordinates out of range")
	}
	return nil
}

// Distance returns the Haversine distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Within reports whether p lies inside the circle of radiusMeters around center.
// The boundary is inclusive.
func Within(center, p Point, radiusMeters float64) bool {
	return Distance(center, p) <= radiusMeters
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
