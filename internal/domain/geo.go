package domain

import "math"

// EarthRadiusKm is the spherical Earth radius used for distance ranking.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// WGS-84 coordinates, treating the Earth as a sphere.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can push a marginally above 1 for antipodal points.
	a = math.Min(1, a)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}
