package search

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nearby-events/internal/model"
	"github.com/sells-group/nearby-events/internal/spatial"
	"github.com/sells-group/nearby-events/internal/store"
	"github.com/sells-group/nearby-events/pkg/geocode"
	"github.com/sells-group/nearby-events/pkg/geocode/mocks"
	"github.com/sells-group/nearby-events/pkg/geohash"
)

// fakeIndex serves events by cell in (start_time, event_id) order and
// honors overlap bounds and offset cursors.
type fakeIndex struct {
	mu      sync.Mutex
	cells   map[string][]model.Event
	queries []store.CellQuery
	err     error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{cells: make(map[string][]model.Event)}
}

func (f *fakeIndex) add(t *testing.T, ev model.Event) {
	t.Helper()
	gh5, err := geohash.Encode(ev.Coordinates.Lat, ev.Coordinates.Lng, IndexPrecision)
	require.NoError(t, err)
	ev.GH5 = gh5
	f.addToCell(gh5, ev)
}

func (f *fakeIndex) addToCell(cell string, ev model.Event) {
	evs := append(f.cells[cell], ev)
	sort.Slice(evs, func(i, j int) bool {
		if evs[i].StartTime != evs[j].StartTime {
			return evs[i].StartTime < evs[j].StartTime
		}
		return evs[i].EventID < evs[j].EventID
	})
	f.cells[cell] = evs
}

func (f *fakeIndex) QueryCell(_ context.Context, q store.CellQuery) (*store.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}

	var matched []model.Event
	for _, ev := range f.cells[q.Cell] {
		if q.Start != nil && ev.EffectiveEnd() < *q.Start {
			continue
		}
		if q.End != nil && ev.StartTime > *q.End {
			continue
		}
		matched = append(matched, ev)
	}

	offset := 0
	if q.Cursor != "" {
		offset, _ = strconv.Atoi(q.Cursor)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultPageSize
	}
	if offset >= len(matched) {
		return &store.Page{}, nil
	}
	end := min(offset+limit, len(matched))
	page := &store.Page{Items: matched[offset:end]}
	if end < len(matched) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeIndex) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

var nyc = model.Coordinates{Lat: 40.7128, Lng: -74.0060}

func ptr(v float64) *float64 { return &v }

func at(center model.Coordinates, bearing, miles float64) model.Coordinates {
	lat, lng := spatial.Destination(center.Lat, center.Lng, bearing, spatial.MilesToMeters(miles))
	return model.Coordinates{Lat: lat, Lng: lng}
}

func coordQuery(c model.Coordinates, radius float64) Query {
	return Query{Center: CenterInput{Lat: ptr(c.Lat), Lng: ptr(c.Lng)}, RadiusMiles: radius}
}

func ids(res *model.SearchResult) []string {
	out := make([]string, 0, len(res.Items))
	for _, it := range res.Items {
		out = append(out, it.EventID)
	}
	return out
}

func TestSearch_RadiusFilter(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, model.Event{EventID: "near", StartTime: 100, Coordinates: at(nyc, 0, 5)})
	idx.add(t, model.Event{EventID: "far", StartTime: 100, Coordinates: at(nyc, 90, 15)})

	p := New(idx, nil, nil, Config{}, nil)
	res, err := p.Search(context.Background(), coordQuery(nyc, 10))
	require.NoError(t, err)

	assert.Equal(t, []string{"near"}, ids(res))
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 10.0, res.RadiusMiles)
	assert.Equal(t, nyc, res.Center)
	assert.InDelta(t, spatial.MilesToMeters(5), res.Items[0].DistanceMeters, 1)
	assert.Nil(t, res.TimeRange)
	assert.Equal(t, 49, idx.queryCount())
}

func TestSearch_SubCellRadius(t *testing.T) {
	lat, lng, err := geohash.Decode("dr5ru")
	require.NoError(t, err)
	center := model.Coordinates{Lat: lat, Lng: lng}

	idx := newFakeIndex()
	idx.add(t, model.Event{EventID: "close", StartTime: 1, Coordinates: at(center, 45, 0.2)})
	idx.add(t, model.Event{EventID: "outside", StartTime: 1, Coordinates: at(center, 45, 0.4)})

	p := New(idx, nil, nil, Config{}, nil)
	res, err := p.Search(context.Background(), coordQuery(center, 0.3))
	require.NoError(t, err)
	assert.Equal(t, []string{"close"}, ids(res))
	assert.Equal(t, 1, idx.queryCount())
}

func TestSearch_EmptyResult(t *testing.T) {
	p := New(newFakeIndex(), nil, nil, Config{}, nil)
	res, err := p.Search(context.Background(), coordQuery(nyc, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.NotNil(t, res.Items)
}

func TestPlanner_Cells(t *testing.T) {
	tests := []struct {
		name   string
		radius float64
		full   bool
		want   int
	}{
		{"sub cell", 0.5, false, 1},
		{"one ring", 5, false, 9},
		{"ten miles", 10, false, 49},
		{"ten miles full coverage", 10, true, 121},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(newFakeIndex(), nil, nil, Config{FullCoverage: tt.full}, nil)
			cells, err := p.Cells(nyc, tt.radius)
			require.NoError(t, err)
			assert.Len(t, cells, tt.want)
			assert.True(t, sort.StringsAreSorted(cells))

			origin, err := geohash.Encode(nyc.Lat, nyc.Lng, IndexPrecision)
			require.NoError(t, err)
			assert.Contains(t, cells, origin)
		})
	}
}

func TestSearch_Radius(t *testing.T) {
	p := New(newFakeIndex(), nil, nil, Config{MaxRadiusMiles: 50}, nil)

	res, err := p.Search(context.Background(), coordQuery(nyc, 0))
	require.NoError(t, err)
	assert.Equal(t, DefaultRadiusMiles, res.RadiusMiles)

	res, err = p.Search(context.Background(), coordQuery(nyc, -3))
	require.NoError(t, err)
	assert.Equal(t, MinRadiusMiles, res.RadiusMiles)

	_, err = p.Search(context.Background(), coordQuery(nyc, 51))
	assert.True(t, errors.Is(err, model.ErrValidationFailed))
}

func TestSearch_DeduplicatesAcrossCells(t *testing.T) {
	idx := newFakeIndex()
	ev := model.Event{EventID: "dup", StartTime: 5, Coordinates: at(nyc, 180, 1)}
	idx.add(t, ev)
	origin, err := geohash.Encode(nyc.Lat, nyc.Lng, IndexPrecision)
	require.NoError(t, err)
	idx.addToCell(origin, ev)

	p := New(idx, nil, nil, Config{}, nil)
	res, err := p.Search(context.Background(), coordQuery(nyc, 5))
	require.NoError(t, err)
	assert.Equal(t, []string{"dup"}, ids(res))
}

func TestSearch_SortsByStartThenID(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, model.Event{EventID: "c", StartTime: 300, Coordinates: at(nyc, 10, 0.5)})
	idx.add(t, model.Event{EventID: "b", StartTime: 100, Coordinates: at(nyc, 200, 1)})
	idx.add(t, model.Event{EventID: "a", StartTime: 100, Coordinates: at(nyc, 300, 1.5)})

	p := New(idx, nil, nil, Config{MaxConcurrency: 2}, nil)
	res, err := p.Search(context.Background(), coordQuery(nyc, 5))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(res))
}

func TestSearch_TimeWindow(t *testing.T) {
	start := epoch(t, "2024-06-01T18:00:00Z")
	end := epoch(t, "2024-06-01T21:00:00Z")

	idx := newFakeIndex()
	idx.add(t, model.Event{EventID: "inside", StartTime: start + 600, EndTime: start + 3600, Coordinates: nyc})
	idx.add(t, model.Event{EventID: "began-earlier", StartTime: start - 7200, EndTime: start + 600, Coordinates: nyc})
	idx.add(t, model.Event{EventID: "ended-earlier", StartTime: start - 7200, EndTime: start - 60, Coordinates: nyc})
	idx.add(t, model.Event{EventID: "after", StartTime: end + 60, Coordinates: nyc})
	idx.add(t, model.Event{EventID: "no-end", StartTime: start + 60, Coordinates: nyc})

	p := New(idx, nil, nil, Config{}, nil)
	q := coordQuery(nyc, 2)
	q.Window = WindowInput{Date: "2024-06-01", Time: "18:00"}
	res, err := p.Search(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []string{"began-earlier", "no-end", "inside"}, ids(res))
	require.NotNil(t, res.TimeRange)
	assert.Equal(t, "2024-06-01T18:00:00.000Z", res.TimeRange.Start)
	assert.Equal(t, "2024-06-01T21:00:00.000Z", res.TimeRange.End)

	require.NotEmpty(t, idx.queries)
	for _, cq := range idx.queries {
		require.NotNil(t, cq.Start)
		require.NotNil(t, cq.End)
		assert.Equal(t, start, *cq.Start)
		assert.Equal(t, end, *cq.End)
	}
}

func TestSearch_MultiDayEventOverlapsWindow(t *testing.T) {
	june1 := epoch(t, "2024-06-01T00:00:00Z")
	day := int64(24 * 3600)

	idx := newFakeIndex()
	idx.add(t, model.Event{EventID: "festival", StartTime: june1, EndTime: june1 + 4*day, Coordinates: nyc})
	idx.add(t, model.Event{EventID: "opening-night", StartTime: june1, EndTime: june1 + 3*3600, Coordinates: nyc})

	for _, cfg := range []Config{{}, DefaultConfig()} {
		p := New(idx, nil, nil, cfg, nil)
		q := coordQuery(nyc, 2)
		q.Window = WindowInput{Date: "2024-06-03"}
		res, err := p.Search(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, []string{"festival"}, ids(res))
	}
}

func TestSearch_EpochZeroIsABound(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, model.Event{EventID: "before-epoch", StartTime: -7200, EndTime: -3600, Coordinates: nyc})
	idx.add(t, model.Event{EventID: "after-epoch", StartTime: 3600, Coordinates: nyc})

	p := New(idx, nil, nil, Config{}, nil)
	q := coordQuery(nyc, 2)
	q.Window = WindowInput{StartTime: "1970-01-01T00:00:00Z"}
	res, err := p.Search(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []string{"after-epoch"}, ids(res))
	require.NotNil(t, res.TimeRange)
	assert.Equal(t, "1970-01-01T00:00:00.000Z", res.TimeRange.Start)
}

func TestSearch_InvalidWindow(t *testing.T) {
	p := New(newFakeIndex(), nil, nil, Config{}, nil)
	q := coordQuery(nyc, 2)
	q.Window = WindowInput{StartTime: "2024-06-02T00:00:00Z", EndTime: "2024-06-01T00:00:00Z"}
	_, err := p.Search(context.Background(), q)
	assert.True(t, errors.Is(err, model.ErrInvalidTimeRange))
}

func TestSearch_Tags(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, model.Event{EventID: "gig", StartTime: 1, Tags: []string{"Concert"}, Coordinates: nyc})
	idx.add(t, model.Event{EventID: "match", StartTime: 2, Tags: []string{"sports"}, Coordinates: nyc})
	idx.add(t, model.Event{EventID: "untagged", StartTime: 3, Coordinates: nyc})

	p := New(idx, nil, nil, Config{}, nil)

	q := coordQuery(nyc, 2)
	q.Tags = "concert, Festival"
	res, err := p.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"gig"}, ids(res))

	q.Tags = []string{"SPORTS"}
	res, err = p.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"match"}, ids(res))

	q.Tags = "not-a-tag"
	res, err = p.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)
}

func TestSearch_Pagination(t *testing.T) {
	idx := newFakeIndex()
	for i := 0; i < 5; i++ {
		idx.add(t, model.Event{EventID: "e" + strconv.Itoa(i), StartTime: int64(i + 1), Coordinates: nyc})
	}

	p := New(idx, nil, nil, Config{PageSize: 2}, nil)
	res, err := p.Search(context.Background(), coordQuery(nyc, 0.5))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Count)
	assert.Equal(t, 3, idx.queryCount())

	capped := New(idx, nil, nil, Config{PageSize: 2, MaxItemsPerCell: 3}, nil)
	res, err = capped.Search(context.Background(), coordQuery(nyc, 0.5))
	require.NoError(t, err)
	assert.Equal(t, []string{"e0", "e1", "e2"}, ids(res))
}

func TestSearch_StoreFailure(t *testing.T) {
	idx := newFakeIndex()
	idx.err = errors.New("connection refused")

	p := New(idx, nil, nil, Config{}, nil)
	_, err := p.Search(context.Background(), coordQuery(nyc, 5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrUpstreamUnavailable))
}

func TestSearch_GeocodedCenter(t *testing.T) {
	gc := mocks.NewMockClient(t)
	gc.On("Geocode", mock.Anything, "1 Main St, Springfield, IL").
		Return(&geocode.Result{Latitude: nyc.Lat, Longitude: nyc.Lng, Matched: true}, nil)

	idx := newFakeIndex()
	idx.add(t, model.Event{EventID: "x", StartTime: 1, Coordinates: nyc})

	p := New(idx, gc, nil, Config{}, nil)
	res, err := p.Search(context.Background(), Query{
		Center:      CenterInput{Address: " 1 Main St ", City: "Springfield", State: "IL"},
		RadiusMiles: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, nyc, res.Center)
	assert.Equal(t, []string{"x"}, ids(res))
}

func TestResolveCenter_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := ResolveCenter(ctx, nil, CenterInput{})
	assert.True(t, errors.Is(err, model.ErrInvalidLocation))

	_, err = ResolveCenter(ctx, nil, CenterInput{Lat: ptr(91), Lng: ptr(0)})
	assert.True(t, errors.Is(err, model.ErrInvalidCoordinate))

	_, err = ResolveCenter(ctx, nil, CenterInput{Lat: ptr(40)})
	assert.True(t, errors.Is(err, model.ErrInvalidLocation), "lat alone is not a center")

	gc := mocks.NewMockClient(t)
	gc.On("Geocode", mock.Anything, "Nowhere").Return(&geocode.Result{}, nil).Once()
	_, err = ResolveCenter(ctx, gc, CenterInput{City: "Nowhere"})
	assert.True(t, errors.Is(err, model.ErrInvalidLocation))

	gc.On("Geocode", mock.Anything, "Offline").Return(nil, errors.New("dial tcp: timeout")).Once()
	_, err = ResolveCenter(ctx, gc, CenterInput{City: "Offline"})
	assert.True(t, errors.Is(err, model.ErrUpstreamUnavailable))
}
