package geocode

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

// newTestGeocoder points both endpoints at srv with no rate limiting.
func newTestGeocoder(t *testing.T, srv *httptest.Server, opts ...Option) *geocoder {
	t.Helper()
	opts = append([]Option{
		WithHTTPClient(srv.Client()),
		WithBaseURLs(srv.URL+"/geocode/json", srv.URL+"/v1"),
	}, opts...)
	g := NewClient("test-key", opts...).(*geocoder)
	g.limiter = rate.NewLimiter(rate.Inf, 1)
	return g
}

// routes dispatches by path so one server can play both Google APIs.
func routes(geocode, places http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()
	if geocode != nil {
		mux.HandleFunc("/geocode/json", geocode)
	}
	if places != nil {
		mux.HandleFunc("/v1/places:searchText", places)
	}
	return mux
}
