// Package geo computes great-circle distances between coordinates.
package geo

import (
	"math"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
)

// earthRadiusKM is the mean Earth radius used by the spherical approximation.
const earthRadiusKM = 6371

// DistanceKM returns the haversine distance between a and b in kilometres.
// It is commutative and returns domain.ErrInvalidCoordinate (wrapped) for
// out-of-range input.
func DistanceKM(a, b domain.Coordinate) (float64, error) {
	if err := domain.ValidateCoordinate(a); err != nil {
		return 0, err
	}
	if err := domain.ValidateCoordinate(b); err != nil {
		return 0, err
	}

	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(h))
	return earthRadiusKM * c, nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
