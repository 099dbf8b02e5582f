package model

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/nearby-events/pkg/geohash"
)

// Error taxonomy shared by the search, normalization and event services.
// Callers wrap these with eris and match them with errors.Is.
var (
	// ErrInvalidCoordinate is a non-finite or out-of-range lat/lng.
	ErrInvalidCoordinate = geohash.ErrInvalidCoordinate
	// ErrInvalidLocation means no center could be resolved from the request.
	ErrInvalidLocation = eris.New("invalid location")
	// ErrInvalidTimeRange is an unparseable time bound or an end before start.
	ErrInvalidTimeRange = eris.New("invalid time range")
	// ErrValidationFailed is a schema violation in a request or record.
	ErrValidationFailed = eris.New("validation failed")
	// ErrUpstreamTimeout means a text-generation call exceeded its deadline.
	ErrUpstreamTimeout = eris.New("upstream timeout")
	// ErrUpstreamUnavailable is any other geocoder, generator or store failure.
	ErrUpstreamUnavailable = eris.New("upstream unavailable")
	ErrNotFound            = eris.New("not found")
)
