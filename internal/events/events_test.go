package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nearby-events/internal/model"
	"github.com/sells-group/nearby-events/internal/store"
	"github.com/sells-group/nearby-events/pkg/geocode"
	geomocks "github.com/sells-group/nearby-events/pkg/geocode/mocks"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func fixedNow() time.Time { return time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC) }

func newService(t *testing.T, gc geocode.Client) (*Service, *store.SQLiteStore) {
	st := newTestStore(t)
	svc := New(st, gc, nil)
	svc.now = fixedNow
	return svc, st
}

func validInput() CreateInput {
	return CreateInput{
		Name:           "Jazz Night at the Park",
		Description:    "Live music",
		CreatedByEmail: "host@example.com",
		DateTime:       "2025-11-01T19:00:00Z",
		EndDateTime:    "2025-11-01T22:00:00Z",
		Location:       &model.EventLocation{Name: "Bryant Park", City: "New York", State: "NY"},
		Coordinates:    &model.Coordinates{Lat: 40.7536, Lng: -73.9832},
	}
}

func TestCreate_WithCoordinates(t *testing.T) {
	svc, st := newService(t, nil)
	ctx := context.Background()

	ev, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, int64(1762023600), ev.StartTime)
	assert.Equal(t, int64(1762034400), ev.EndTime)
	assert.Len(t, ev.Geohash, 6)
	assert.Equal(t, ev.Geohash[:5], ev.GH5)
	assert.Equal(t, "dr5ru", ev.GH5)
	assert.Contains(t, ev.Tags, "Concert")
	assert.LessOrEqual(t, len(ev.Tags), 3)
	assert.Equal(t, []string{}, ev.PhotoURLs)
	assert.Equal(t, fixedNow(), ev.CreatedAt)

	page, err := st.QueryCell(ctx, store.CellQuery{Cell: ev.GH5})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ev.EventID, page.Items[0].EventID)
}

func TestCreate_EpochEndTime(t *testing.T) {
	svc, _ := newService(t, nil)
	in := validInput()
	in.EndDateTime = ""
	in.EndTime = json.Number("1762030000")

	ev, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(1762030000), ev.EndTime)
}

func TestCreate_Geocodes(t *testing.T) {
	gc := geomocks.NewMockClient(t)
	gc.On("Geocode", mock.Anything, "1 Main St, Austin, TX, 78701").
		Return(&geocode.Result{Latitude: 30.2672, Longitude: -97.7431, Matched: true}, nil).Once()

	svc, _ := newService(t, gc)
	in := validInput()
	in.Coordinates = nil
	in.Location = &model.EventLocation{Name: "City Hall", Address: "1 Main St", City: "Austin", State: "TX", Zip: "78701"}

	ev, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.InDelta(t, 30.2672, ev.Coordinates.Lat, 1e-9)
	assert.Equal(t, "9v6kp", ev.GH5)
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*CreateInput)
		want   error
	}{
		{"missing name", func(in *CreateInput) { in.Name = " " }, model.ErrValidationFailed},
		{"missing email", func(in *CreateInput) { in.CreatedByEmail = "" }, model.ErrValidationFailed},
		{"missing end", func(in *CreateInput) { in.EndDateTime = "" }, model.ErrValidationFailed},
		{"bad start", func(in *CreateInput) { in.DateTime = "next friday" }, model.ErrInvalidTimeRange},
		{"bad end", func(in *CreateInput) { in.EndDateTime = "later" }, model.ErrInvalidTimeRange},
		{"bad epoch", func(in *CreateInput) { in.EndDateTime = ""; in.EndTime = "soon" }, model.ErrInvalidTimeRange},
		{"end before start", func(in *CreateInput) { in.EndDateTime = "2025-11-01T18:00:00Z" }, model.ErrInvalidTimeRange},
		{"bad coordinates", func(in *CreateInput) { in.Coordinates = &model.Coordinates{Lat: 95} }, model.ErrInvalidCoordinate},
		{"no location", func(in *CreateInput) { in.Coordinates = nil; in.Location = nil }, model.ErrInvalidLocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t, nil)
			in := validInput()
			tt.modify(&in)
			_, err := svc.Create(context.Background(), in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_GeocodeFailures(t *testing.T) {
	gc := geomocks.NewMockClient(t)
	gc.On("Geocode", mock.Anything, "Nowhere").Return(&geocode.Result{Matched: false}, nil).Once()
	gc.On("Geocode", mock.Anything, "Austin").Return(nil, errors.New("geocode: status 503")).Once()

	svc, _ := newService(t, gc)
	in := validInput()
	in.Coordinates = nil

	in.Location = &model.EventLocation{City: "Nowhere"}
	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, model.ErrInvalidLocation)

	in.Location = &model.EventLocation{City: "Austin"}
	_, err = svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
}

func TestListByCreator(t *testing.T) {
	svc, st := newService(t, nil)
	svc.pageSize = 2
	ctx := context.Background()

	for i := range 5 {
		ev := model.Event{
			EventID:        fmt.Sprintf("ev-%d", i),
			Name:           "Event",
			CreatedByEmail: "host@example.com",
			StartTime:      int64(1000 + i),
			GH5:            "dr5ru",
			Geohash:        "dr5ruu",
		}
		require.NoError(t, st.PutEvent(ctx, &ev))
	}
	other := model.Event{EventID: "other", CreatedByEmail: "else@example.com", StartTime: 5000, GH5: "dr5ru", Geohash: "dr5ruu"}
	require.NoError(t, st.PutEvent(ctx, &other))

	got, err := svc.ListByCreator(ctx, " host@example.com ", 0)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "ev-4", got[0].EventID, "newest first")
	assert.Equal(t, "ev-0", got[4].EventID)

	got, err = svc.ListByCreator(ctx, "host@example.com", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = svc.ListByCreator(ctx, "", 10)
	assert.ErrorIs(t, err, model.ErrValidationFailed)
}

type recordingStore struct {
	Store
	limits []int
}

func (r *recordingStore) ListByCreator(_ context.Context, q store.CreatorQuery) (*store.Page, error) {
	r.limits = append(r.limits, q.Limit)
	items := make([]model.Event, q.Limit)
	return &store.Page{Items: items, Next: "more"}, nil
}

func TestListByCreator_CapsLimit(t *testing.T) {
	rs := &recordingStore{}
	svc := New(rs, nil, nil)

	got, err := svc.ListByCreator(context.Background(), "host@example.com", 5000)
	require.NoError(t, err)
	assert.Len(t, got, MaxListLimit)
	assert.Len(t, rs.limits, MaxListLimit/store.DefaultPageSize)
}

func aiCandidate() model.Candidate {
	return model.Candidate{
		"title":      "Harvest Festival",
		"start_date": "2025-11-01",
		"start_time": "15:00",
		"timezone":   "America/Chicago",
		"source_url": "https://austintexas.gov/events/harvest",
		"location":   map[string]any{"venue": "Republic Square", "city": "Austin", "latitude": 30.268},
		"organizer":  map[string]any{"name": "City of Austin"},
		"tags":       []any{"Festival", "Market", "Outdoor", "Cultural", "Charity", "Drinks"},
	}
}

func TestSaveAIEvent_CreateThenTouch(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	ev, created, err := svc.SaveAIEvent(ctx, "", aiCandidate())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, ev.EventID)
	assert.Len(t, ev.Tags, model.MaxStoredAITags)

	got, err := svc.GetAIEvent(ctx, ev.EventID)
	require.NoError(t, err)
	assert.Equal(t, "Harvest Festival", got.Title)
	assert.Equal(t, "Republic Square", got.Location.Venue)
	require.NotNil(t, got.Location.Latitude)
	assert.InDelta(t, 30.268, *got.Location.Latitude, 1e-9)
	require.NotNil(t, got.Organizer)
	assert.Equal(t, "City of Austin", got.Organizer.Name)
	assert.Nil(t, got.TicketInfo)

	later := fixedNow().Add(time.Hour)
	svc.now = func() time.Time { return later }
	changed := aiCandidate()
	changed["title"] = "Renamed"
	_, created, err = svc.SaveAIEvent(ctx, ev.EventID, changed)
	require.NoError(t, err)
	assert.False(t, created)

	got, err = svc.GetAIEvent(ctx, ev.EventID)
	require.NoError(t, err)
	assert.Equal(t, "Harvest Festival", got.Title, "existing record is only touched")
	assert.True(t, got.UpdatedAt.Equal(later))
	assert.True(t, got.CreatedAt.Equal(fixedNow()))
}

func TestSaveAIEvent_Defaults(t *testing.T) {
	svc, _ := newService(t, nil)
	c := aiCandidate()
	c["location"] = "downtown"
	c["tags"] = "Festival"

	ev, _, err := svc.SaveAIEvent(context.Background(), "given-id", c)
	require.NoError(t, err)
	assert.Equal(t, "given-id", ev.EventID)
	assert.Equal(t, model.AILocation{}, ev.Location)
	assert.Equal(t, []string{}, ev.Tags)
}

func TestSaveAIEvent_CanonicalTags(t *testing.T) {
	svc, _ := newService(t, nil)
	c := aiCandidate()
	c["tags"] = []any{"festival", "Rodeo", "OUTDOOR", "netwroking", "Festival"}

	ev, _, err := svc.SaveAIEvent(context.Background(), "", c)
	require.NoError(t, err)
	assert.Equal(t, []string{"Festival", "Outdoor", "Networking"}, ev.Tags)

	got, err := svc.GetAIEvent(context.Background(), ev.EventID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Festival", "Outdoor", "Networking"}, got.Tags)
}

func TestSaveAIEvent_Required(t *testing.T) {
	svc, _ := newService(t, nil)
	for _, key := range []string{"title", "start_date", "timezone", "source_url"} {
		t.Run(key, func(t *testing.T) {
			c := aiCandidate()
			delete(c, key)
			_, _, err := svc.SaveAIEvent(context.Background(), "", c)
			assert.ErrorIs(t, err, model.ErrValidationFailed)
		})
	}
}

func TestGetAIEvent_NotFound(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.GetAIEvent(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.GetAIEvent(context.Background(), " ")
	assert.ErrorIs(t, err, model.ErrValidationFailed)
}
