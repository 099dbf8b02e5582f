package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reverseBody = `{
	"status": "OK",
	"results": [
		{
			"formatted_address": "1 Park Row, New York, NY 10038, USA",
			"address_components": [
				{"long_name": "Manhattan", "short_name": "Manhattan", "types": ["sublocality_level_1", "sublocality"]},
				{"long_name": "New York", "short_name": "New York", "types": ["locality", "political"]},
				{"long_name": "New York", "short_name": "NY", "types": ["administrative_area_level_1", "political"]},
				{"long_name": "United States", "short_name": "US", "types": ["country", "political"]}
			]
		},
		{
			"formatted_address": "New York, NY 10038, USA",
			"address_components": [
				{"long_name": "10038", "short_name": "10038", "types": ["postal_code"]}
			]
		}
	]
}`

func TestReverse_Success(t *testing.T) {
	var latlng string
	srv := httptest.NewServer(routes(func(w http.ResponseWriter, r *http.Request) {
		latlng = r.URL.Query().Get("latlng")
		_, _ = io.WriteString(w, reverseBody)
	}, nil))
	defer srv.Close()

	g := newTestGeocoder(t, srv)
	addr, err := g.Reverse(context.Background(), 40.7115, -74.0064)
	require.NoError(t, err)
	assert.Equal(t, "40.7115,-74.0064", latlng)
	assert.Equal(t, "New York", addr.City)
	assert.Equal(t, "NY", addr.Region)
	assert.Equal(t, "US", addr.Country)
	assert.Equal(t, "10038", addr.PostalCode)
	assert.Equal(t, "1 Park Row, New York, NY 10038, USA", addr.Formatted)
	assert.True(t, addr.Complete())
}

func TestReverse_NoResults(t *testing.T) {
	srv := httptest.NewServer(routes(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}, nil))
	defer srv.Close()

	g := newTestGeocoder(t, srv)
	addr, err := g.Reverse(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.False(t, addr.Complete())
}

func TestFillAddress_CityPrecedence(t *testing.T) {
	addr := &Address{}
	fillAddress(addr, []addressComponent{
		{LongName: "Kings County", Types: []string{"administrative_area_level_2"}},
		{LongName: "Brooklyn", Types: []string{"sublocality"}},
	})
	assert.Equal(t, "Brooklyn", addr.City)

	var nilAddr *Address
	assert.False(t, nilAddr.Complete())
}
