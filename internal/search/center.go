package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nearby-events/internal/model"
	"github.com/sells-group/nearby-events/internal/spatial"
	"github.com/sells-group/nearby-events/pkg/geocode"
)

// CenterInput is either a coordinate pair or free-text address parts.
type CenterInput struct {
	Lat, Lng *float64
	Address  string
	City     string
	State    string
	Zip      string
	Country  string
}

// Query returns the address parts joined for the geocoder.
func (c CenterInput) Query() string {
	parts := []string{c.Address, c.City, c.State, c.Zip, c.Country}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return model.JoinNonEmpty(", ", parts...)
}

// ResolveCenter returns the search center. Coordinates win when both are
// present; otherwise the address parts are geocoded. A nil geocoder only
// supports coordinate input.
func ResolveCenter(ctx context.Context, gc geocode.Client, in CenterInput) (model.Coordinates, error) {
	if in.Lat != nil && in.Lng != nil {
		if err := spatial.ValidateCoordinates(*in.Lat, *in.Lng); err != nil {
			return model.Coordinates{}, err
		}
		return model.Coordinates{Lat: *in.Lat, Lng: *in.Lng}, nil
	}

	query := in.Query()
	if query == "" {
		return model.Coordinates{}, eris.Wrap(model.ErrInvalidLocation, "provide lat/lng or address/city-state/zip")
	}
	if gc == nil {
		return model.Coordinates{}, eris.Wrap(model.ErrInvalidLocation, "search: no geocoder configured")
	}

	res, err := gc.Geocode(ctx, query)
	if err != nil {
		return model.Coordinates{}, eris.Wrapf(model.ErrUpstreamUnavailable, "search: geocode %q: %v", query, err)
	}
	if res == nil || !res.Matched {
		return model.Coordinates{}, eris.Wrapf(model.ErrInvalidLocation, "search: no match for %q", query)
	}
	if err := spatial.ValidateCoordinates(res.Latitude, res.Longitude); err != nil {
		return model.Coordinates{}, eris.Wrapf(model.ErrInvalidLocation, "search: geocoder returned %v", err)
	}
	return model.Coordinates{Lat: res.Latitude, Lng: res.Longitude}, nil
}
