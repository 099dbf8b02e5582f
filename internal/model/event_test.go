package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nearby-events/pkg/geohash"
)

func TestEventLocation_Text(t *testing.T) {
	loc := EventLocation{Name: " Pier 17 ", Address: "89 South St", City: "New York", State: "NY", Zip: "10038", Country: "US"}
	assert.Equal(t, "Pier 17 89 South St New York NY 10038", loc.Text())
	assert.Equal(t, "89 South St, New York, NY, 10038", loc.GeocodeQuery())
	assert.Empty(t, EventLocation{}.GeocodeQuery())
}

func TestEvent_EffectiveEnd(t *testing.T) {
	ev := Event{StartTime: 100}
	assert.Equal(t, int64(100), ev.EffectiveEnd())
	ev.EndTime = 200
	assert.Equal(t, int64(200), ev.EffectiveEnd())
}

func TestSearchItem_JSONFlattensEvent(t *testing.T) {
	item := SearchItem{Event: Event{EventID: "e1", StartTime: 10}, DistanceMeters: 12.5}
	b, err := json.Marshal(item)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "e1", m["eventId"])
	assert.InDelta(t, 10, m["dateTime"], 0)
	assert.InDelta(t, 12.5, m["distanceMeters"], 0)
}

func TestCandidate_Accessors(t *testing.T) {
	c := Candidate{
		"title":    "Harvest Fair",
		"tags":     []any{"Festival"},
		"location": map[string]any{"venue": "Town Green"},
	}
	assert.Equal(t, "Harvest Fair", c.String("title"))
	assert.Empty(t, c.String("tags"))
	assert.Equal(t, "Town Green", c.Object("location")["venue"])
	assert.Nil(t, c.Object("title"))

	cp := c.Clone()
	cp.Object("location")["venue"] = "Elsewhere"
	assert.Equal(t, "Town Green", c.Object("location")["venue"])
}

func TestErrors_Wrapping(t *testing.T) {
	err := eris.Wrap(ErrInvalidTimeRange, "search: resolve window")
	assert.True(t, errors.Is(err, ErrInvalidTimeRange))
	assert.False(t, errors.Is(err, ErrInvalidLocation))

	_, encErr := geohash.Encode(91, 0, 5)
	assert.True(t, errors.Is(encErr, ErrInvalidCoordinate))
}
