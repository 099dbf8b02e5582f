// Package spatial holds the distance math used to refine geohash cell
// matches into exact radius results.
package spatial

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nearby-events/internal/model"
)

const (
	// EarthRadiusMeters is the mean Earth radius used for great-circle distance.
	EarthRadiusMeters = 6371000.0

	// MetersPerMile converts statute miles to meters.
	MetersPerMile = 1609.34

	// KmPerMile converts statute miles to kilometers.
	KmPerMile = 1.60934
)

// HaversineMeters returns the great-circle distance between two points in
// meters. Any non-finite input yields +Inf so the point falls outside every
// bounded radius.
func HaversineMeters(latA, lngA, latB, lngB float64) float64 {
	if !finite(latA) || !finite(lngA) || !finite(latB) || !finite(lngB) {
		return math.Inf(1)
	}
	a := s2.LatLngFromDegrees(latA, lngA)
	b := s2.LatLngFromDegrees(latB, lngB)
	return a.Distance(b).Radians() * EarthRadiusMeters
}

// Distance is HaversineMeters for two Coordinates.
func Distance(a, b model.Coordinates) float64 {
	return HaversineMeters(a.Lat, a.Lng, b.Lat, b.Lng)
}

// MilesToMeters converts a radius in miles to meters.
func MilesToMeters(miles float64) float64 {
	return miles * MetersPerMile
}

// MilesToKm converts a radius in miles to kilometers.
func MilesToKm(miles float64) float64 {
	return miles * KmPerMile
}

// ValidateCoordinates rejects non-finite or out-of-range coordinates.
func ValidateCoordinates(lat, lng float64) error {
	if !finite(lat) || !finite(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return eris.Wrapf(model.ErrInvalidCoordinate, "spatial: lat=%v lng=%v", lat, lng)
	}
	return nil
}

// Destination returns the point reached by travelling meters from (lat, lng)
// along the initial bearing (degrees clockwise from north).
func Destination(lat, lng, bearing, meters float64) (float64, float64) {
	p := s2.LatLngFromDegrees(lat, lng)
	brng := bearing * math.Pi / 180
	d := meters / EarthRadiusMeters

	lat1 := p.Lat.Radians()
	lng1 := p.Lng.Radians()
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lng2 := lng1 + math.Atan2(math.Sin(brng)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))

	out := s2.LatLng{Lat: s1.Angle(lat2), Lng: s1.Angle(lng2)}.Normalized()
	return out.Lat.Degrees(), out.Lng.Degrees()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
