package zipbed

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371

// DistanceKm returns the great-circle distance in kilometres between two points
// given in decimal degrees, using the atan2 form of the haversine formula.
// The haversine term is clamped to [0, 1], so antipodal points never yield NaN.
// Inputs are not range-checked.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	angle := s2.LatLngFromDegrees(lat1, lon1).Distance(s2.LatLngFromDegrees(lat2, lon2))
	return angle.Radians() * earthRadiusKm
}

// kmToAngle converts a surface distance to the central angle on the unit sphere.
func kmToAngle(km float64) s1.Angle {
	return s1.Angle(km / earthRadiusKm)
}
