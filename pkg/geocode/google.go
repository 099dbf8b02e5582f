package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-events/internal/resilience"
)

const defaultGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

type geocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	AddressComponents []addressComponent `json:"address_components"`
	Geometry          struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Geocode tries the Geocoding API first and falls back to a Places text
// search when the address is not matched.
func (g *geocoder) Geocode(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &Result{Matched: false}, nil
	}

	resp, err := g.lookup(ctx, url.Values{"address": {query}})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) > 0 {
		r := resp.Results[0]
		return &Result{
			Latitude:         r.Geometry.Location.Lat,
			Longitude:        r.Geometry.Location.Lng,
			FormattedAddress: r.FormattedAddress,
			Source:           "google",
			Quality:          locationTypeToQuality(r.Geometry.LocationType),
			Matched:          true,
		}, nil
	}

	if !g.places {
		return &Result{Matched: false, Source: "google"}, nil
	}
	zap.L().Debug("geocode: no address match, trying places", zap.String("query", query))
	return g.searchPlace(ctx, query)
}

// lookup performs one Geocoding API request. ZERO_RESULTS is returned as an
// empty response rather than an error.
func (g *geocoder) lookup(ctx context.Context, params url.Values) (*geocodeResponse, error) {
	if g.apiKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}
	params.Set("key", g.apiKey)
	reqURL := g.geocodeURL + "?" + params.Encode()

	return resilience.Call(ctx, g.policy, func(ctx context.Context) (*geocodeResponse, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "geocode: rate limit")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "geocode: build request")
		}
		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "geocode: request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "geocode: read body")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, resilience.StatusError("geocode", resp.StatusCode, body)
		}

		var out geocodeResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, eris.Wrap(err, "geocode: parse response")
		}
		switch out.Status {
		case "OK", "ZERO_RESULTS":
			return &out, nil
		case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
			return nil, resilience.NewTransientError(eris.Errorf("geocode: status %s", out.Status), http.StatusTooManyRequests)
		default:
			return nil, eris.Errorf("geocode: status %s: %s", out.Status, out.ErrorMessage)
		}
	})
}

func locationTypeToQuality(locType string) string {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return "rooftop"
	case "RANGE_INTERPOLATED":
		return "range"
	case "GEOMETRIC_CENTER":
		return "centroid"
	default:
		return "approximate"
	}
}
