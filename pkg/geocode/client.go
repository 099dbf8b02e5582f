// Package geocode resolves free-text places to coordinates and coordinates
// back to a locality, using the Google Geocoding API with a Places text
// search fallback for venue names.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/nearby-events/internal/resilience"
)

// Client geocodes place text and reverse-geocodes coordinates.
type Client interface {
	// Geocode resolves query to a point. An unmatched query returns a
	// Result with Matched=false and a nil error.
	Geocode(ctx context.Context, query string) (*Result, error)

	// Reverse resolves a point to its locality. Fields Google does not
	// report are left empty.
	Reverse(ctx context.Context, lat, lng float64) (*Address, error)
}

// Result holds the geocoding output for a query.
type Result struct {
	Latitude         float64
	Longitude        float64
	FormattedAddress string
	Source           string // "google" or "places"
	Quality          string // "rooftop", "range", "centroid", "approximate"
	Matched          bool
}

// Address is a reverse geocode result.
type Address struct {
	City       string `json:"city"`
	Region     string `json:"region"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code,omitempty"`
	Formatted  string `json:"formatted,omitempty"`
}

// Complete reports whether city, region and country are all known.
func (a *Address) Complete() bool {
	return a != nil && a.City != "" && a.Region != "" && a.Country != ""
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit shared by all calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithPlacesFallback enables or disables the Places text search fallback.
func WithPlacesFallback(enabled bool) Option {
	return func(g *geocoder) {
		g.places = enabled
	}
}

// WithPolicy applies retry and circuit breaking to upstream calls.
func WithPolicy(p *resilience.Policy) Option {
	return func(g *geocoder) {
		g.policy = p
	}
}

// WithBaseURLs overrides the Geocoding and Places endpoints.
func WithBaseURLs(geocodeURL, placesURL string) Option {
	return func(g *geocoder) {
		if geocodeURL != "" {
			g.geocodeURL = geocodeURL
		}
		if placesURL != "" {
			g.placesURL = placesURL
		}
	}
}

type geocoder struct {
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     *resilience.Policy
	places     bool
	geocodeURL string
	placesURL  string
}

// NewClient creates a Google-backed Client.
func NewClient(apiKey string, opts ...Option) Client {
	g := &geocoder{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(25, 25),
		places:     true,
		geocodeURL: defaultGeocodeURL,
		placesURL:  defaultPlacesURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}
