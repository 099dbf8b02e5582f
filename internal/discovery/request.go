package discovery

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const milesPerKm = 0.621371

var (
	latKeys = []string{"lat", "latitude", "lat_deg", "latDeg"}
	lngKeys = []string{"lng", "lon", "longitude", "long", "lng_deg", "lngDeg"}
)

// RequestFromQuery reads a discovery request from URL query parameters.
// Unparseable numbers are treated as absent.
func RequestFromQuery(q url.Values) Request {
	region := q.Get("state")
	if region == "" {
		region = q.Get("region_or_state")
	}
	return Request{
		City:        q.Get("city"),
		Region:      region,
		Country:     q.Get("country"),
		StartDate:   q.Get("start_date"),
		EndDate:     q.Get("end_date"),
		Timezone:    q.Get("timezone"),
		Lat:         firstNumber(q, latKeys),
		Lng:         firstNumber(q, lngKeys),
		RadiusMiles: radiusFromQuery(q),
		Debug:       IsTruthy(q.Get("debug")),
		PreferLocal: !IsFalsy(q.Get("preferLocal")),
	}
}

// firstNumber returns the value of the first key present. A present but
// unparseable value still ends the search.
func firstNumber(q url.Values, keys []string) *float64 {
	for _, k := range keys {
		if !q.Has(k) {
			continue
		}
		return parseNumber(q.Get(k))
	}
	return nil
}

// radiusFromQuery takes the first usable value of radius_miles, radiusMiles,
// radius or radius_km.
func radiusFromQuery(q url.Values) *float64 {
	for _, k := range []string{"radius_miles", "radiusMiles", "radius", "radius_km"} {
		if !q.Has(k) {
			continue
		}
		v := parseNumber(q.Get(k))
		if v == nil || *v < 0 {
			continue
		}
		if k == "radius_km" {
			miles := *v * milesPerKm
			return &miles
		}
		return v
	}
	return nil
}

func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// IsTruthy accepts 1, true, yes and on.
func IsTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// IsFalsy accepts 0, false, no and off.
func IsFalsy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "false", "no", "off":
		return true
	}
	return false
}
