package discovery

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFromQuery(t *testing.T) {
	q := url.Values{
		"city":            {"Austin"},
		"region_or_state": {"TX"},
		"country":         {"US"},
		"start_date":      {"2025-11-01"},
		"end_date":        {"2025-11-02"},
		"timezone":        {"America/Chicago"},
		"latitude":        {"30.27"},
		"lon":             {"-97.74"},
		"debug":           {"Yes"},
	}
	req := RequestFromQuery(q)

	assert.Equal(t, "TX", req.Region)
	require.NotNil(t, req.Lat)
	require.NotNil(t, req.Lng)
	assert.Equal(t, 30.27, *req.Lat)
	assert.Equal(t, -97.74, *req.Lng)
	assert.Nil(t, req.RadiusMiles)
	assert.True(t, req.Debug)
	assert.True(t, req.PreferLocal)
}

func TestRequestFromQuery_StateWins(t *testing.T) {
	req := RequestFromQuery(url.Values{"state": {"TX"}, "region_or_state": {"Texas"}})
	assert.Equal(t, "TX", req.Region)
}

func TestRequestFromQuery_Radius(t *testing.T) {
	tests := []struct {
		name string
		q    url.Values
		want *float64
	}{
		{"none", url.Values{}, nil},
		{"miles", url.Values{"radius_miles": {"12"}}, ptr(12)},
		{"camel case", url.Values{"radiusMiles": {" 8 "}}, ptr(8)},
		{"precedence", url.Values{"radius": {"3"}, "radius_miles": {"4"}}, ptr(4)},
		{"skips unusable", url.Values{"radius_miles": {"far"}, "radius": {"-1"}, "radius_km": {"10"}}, ptr(10 * milesPerKm)},
		{"km", url.Values{"radius_km": {"100"}}, ptr(62.1371)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RequestFromQuery(tt.q).RadiusMiles
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestRequestFromQuery_Flags(t *testing.T) {
	assert.False(t, RequestFromQuery(url.Values{"preferLocal": {"off"}}).PreferLocal)
	assert.False(t, RequestFromQuery(url.Values{"preferLocal": {"0"}}).PreferLocal)
	assert.True(t, RequestFromQuery(url.Values{"preferLocal": {"maybe"}}).PreferLocal)
	assert.False(t, RequestFromQuery(url.Values{"debug": {"2"}}).Debug)
}

func TestRequestFromQuery_UnparseableCoordinate(t *testing.T) {
	req := RequestFromQuery(url.Values{"lat": {"north"}, "latitude": {"30"}, "lng": {"-97"}})
	assert.Nil(t, req.Lat, "the first present key decides")
	assert.NotNil(t, req.Lng)
}
