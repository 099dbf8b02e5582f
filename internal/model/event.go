package model

import "time"

// Coordinates is a WGS84 point in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EventLocation holds the free-text location parts supplied at creation.
type EventLocation struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// Text joins the descriptive location parts for keyword classification.
func (l EventLocation) Text() string {
	return JoinNonEmpty(" ", l.Name, l.Address, l.City, l.State, l.Zip)
}

// GeocodeQuery joins the address parts into a single geocoder query.
func (l EventLocation) GeocodeQuery() string {
	return JoinNonEmpty(", ", l.Address, l.City, l.State, l.Zip)
}

// Event is a user-created event stored in the spatial index. StartTime and
// EndTime are epoch seconds; GH5 is the index partition key.
type Event struct {
	EventID        string        `json:"eventId"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	CreatedByEmail string        `json:"createdByEmail"`
	StartTime      int64         `json:"dateTime"`
	EndTime        int64         `json:"endTime"`
	Location       EventLocation `json:"location"`
	Coordinates    Coordinates   `json:"coordinates"`
	Geohash        string        `json:"geohash"`
	GH5            string        `json:"gh5"`
	Tags           []string      `json:"tags"`
	PhotoURLs      []string      `json:"photoUrls"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// EffectiveEnd returns EndTime, falling back to StartTime when unset.
func (e *Event) EffectiveEnd() int64 {
	if e.EndTime != 0 {
		return e.EndTime
	}
	return e.StartTime
}

// SearchItem is an event annotated with its distance from the search center.
type SearchItem struct {
	Event
	DistanceMeters float64 `json:"distanceMeters"`
}

// TimeRange is the resolved search window rendered as RFC 3339 strings.
type TimeRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// SearchResult is the response of a radius search.
type SearchResult struct {
	Center      Coordinates  `json:"center"`
	RadiusMiles float64      `json:"radiusMiles"`
	Count       int          `json:"count"`
	Items       []SearchItem `json:"items"`
	TimeRange   *TimeRange   `json:"timeRange,omitempty"`
}
