package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nearby-events/internal/resilience"
)

const defaultPlacesURL = "https://places.googleapis.com/v1"

type textSearchRequest struct {
	TextQuery      string `json:"textQuery"`
	MaxResultCount int    `json:"maxResultCount"`
}

type textSearchResponse struct {
	Places []struct {
		FormattedAddress string `json:"formattedAddress"`
		Location         struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
	} `json:"places"`
}

// searchPlace resolves venue-style text ("Town Green, Guilford CT") that the
// Geocoding API does not match.
func (g *geocoder) searchPlace(ctx context.Context, query string) (*Result, error) {
	payload, err := json.Marshal(textSearchRequest{TextQuery: query, MaxResultCount: 1})
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	out, err := resilience.Call(ctx, g.policy, func(ctx context.Context) (*textSearchResponse, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "places: rate limit")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.placesURL+"/places:searchText", bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "places: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-Api-Key", g.apiKey)
		req.Header.Set("X-Goog-FieldMask", "places.location,places.formattedAddress")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "places: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "places: read response")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, resilience.StatusError("places", resp.StatusCode, body)
		}
		var r textSearchResponse
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, eris.Wrap(err, "places: unmarshal response")
		}
		return &r, nil
	})
	if err != nil {
		return nil, err
	}

	if len(out.Places) == 0 {
		return &Result{Matched: false, Source: "places"}, nil
	}
	p := out.Places[0]
	return &Result{
		Latitude:         p.Location.Latitude,
		Longitude:        p.Location.Longitude,
		FormattedAddress: p.FormattedAddress,
		Source:           "places",
		Quality:          "approximate",
		Matched:          true,
	}, nil
}
