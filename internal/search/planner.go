// Package search answers radius-and-window event queries. It fans out range
// queries over geohash cells, then refines the merged matches exactly.
package search

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/nearby-events/internal/metrics"
	"github.com/sells-group/nearby-events/internal/model"
	"github.com/sells-group/nearby-events/internal/spatial"
	"github.com/sells-group/nearby-events/internal/store"
	"github.com/sells-group/nearby-events/internal/tags"
	"github.com/sells-group/nearby-events/pkg/geocode"
	"github.com/sells-group/nearby-events/pkg/geohash"
)

const (
	// DefaultRadiusMiles applies when a query sets no radius.
	DefaultRadiusMiles = 10.0
	// MinRadiusMiles is the smallest radius searched.
	MinRadiusMiles = 0.1

	// IndexPrecision is the geohash length of the partition key.
	IndexPrecision = 5
	// nominalCellKm is the approximate edge of a precision-5 cell.
	nominalCellKm = 4.9
	// maxCoverageSteps bounds full-coverage rings near the poles.
	maxCoverageSteps = 64
)

// Config tunes the planner.
type Config struct {
	MaxConcurrency  int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	MaxItemsPerCell int     `yaml:"max_items_per_cell" mapstructure:"max_items_per_cell"`
	PageSize        int     `yaml:"page_size" mapstructure:"page_size"`
	MaxRadiusMiles  float64 `yaml:"max_radius_miles" mapstructure:"max_radius_miles"`
	FullCoverage    bool    `yaml:"full_coverage" mapstructure:"full_coverage"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:  8,
		MaxItemsPerCell: 1000,
		PageSize:        store.DefaultPageSize,
		MaxRadiusMiles:  100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = d.MaxConcurrency
	}
	if c.MaxItemsPerCell <= 0 {
		c.MaxItemsPerCell = d.MaxItemsPerCell
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	return c
}

// Query is a search request before center and window resolution.
type Query struct {
	Center      CenterInput
	RadiusMiles float64
	Window      WindowInput
	// Tags is a []string or a comma-separated string; empty means any.
	Tags any
}

// Planner runs radius searches against a SpatialIndex.
type Planner struct {
	index    store.SpatialIndex
	geocoder geocode.Client
	tags     *tags.Classifier
	metrics  *metrics.Metrics
	cfg      Config
}

// New creates a Planner. geocoder may be nil when callers always pass
// coordinates; classifier defaults to the embedded vocabulary.
func New(index store.SpatialIndex, geocoder geocode.Client, classifier *tags.Classifier, cfg Config, m *metrics.Metrics) *Planner {
	if classifier == nil {
		classifier = tags.Default()
	}
	return &Planner{
		index:    index,
		geocoder: geocoder,
		tags:     classifier,
		metrics:  m,
		cfg:      cfg.withDefaults(),
	}
}

// Search resolves q and returns the matching events ordered by start time.
func (p *Planner) Search(ctx context.Context, q Query) (*model.SearchResult, error) {
	started := time.Now()
	cells := 0
	res, err := p.search(ctx, q, &cells)
	p.metrics.ObserveSearch(started, cells, err)
	return res, err
}

func (p *Planner) search(ctx context.Context, q Query, cellCount *int) (*model.SearchResult, error) {
	radius, err := p.radius(q.RadiusMiles)
	if err != nil {
		return nil, err
	}
	center, err := ResolveCenter(ctx, p.geocoder, q.Center)
	if err != nil {
		return nil, err
	}
	window, err := ResolveWindow(q.Window)
	if err != nil {
		return nil, err
	}

	cells, err := p.Cells(center, radius)
	if err != nil {
		return nil, err
	}
	*cellCount = len(cells)

	log := zap.L().With(
		zap.Float64("lat", center.Lat),
		zap.Float64("lng", center.Lng),
		zap.Float64("radius_miles", radius),
		zap.Int("cells", len(cells)),
	)

	events, err := p.fetch(ctx, cells, window)
	if err != nil {
		return nil, err
	}

	items := p.refine(events, center, radius, window, p.tags.Canonicalize(q.Tags))
	log.Debug("search complete",
		zap.Int("candidates", len(events)),
		zap.Int("matched", len(items)),
	)

	return &model.SearchResult{
		Center:      center,
		RadiusMiles: radius,
		Count:       len(items),
		Items:       items,
		TimeRange:   window.TimeRange(),
	}, nil
}

func (p *Planner) radius(miles float64) (float64, error) {
	if math.IsNaN(miles) || math.IsInf(miles, 0) {
		return 0, eris.Wrap(model.ErrValidationFailed, "search: radiusMiles must be a finite number")
	}
	if miles == 0 {
		miles = DefaultRadiusMiles
	}
	miles = math.Max(MinRadiusMiles, miles)
	if p.cfg.MaxRadiusMiles > 0 && miles > p.cfg.MaxRadiusMiles {
		return 0, eris.Wrapf(model.ErrValidationFailed, "search: radiusMiles %.1f exceeds %.1f", miles, p.cfg.MaxRadiusMiles)
	}
	return miles, nil
}

// Cells returns the sorted precision-5 cells to query for a radius around
// center. The origin cell is always included.
func (p *Planner) Cells(center model.Coordinates, radiusMiles float64) ([]string, error) {
	origin, err := geohash.Encode(center.Lat, center.Lng, IndexPrecision)
	if err != nil {
		return nil, eris.Wrap(err, "search: encode center")
	}
	steps := ringSteps(radiusMiles)
	if p.cfg.FullCoverage {
		if full, err := coverageSteps(origin, center, radiusMiles); err == nil && full > steps {
			steps = full
		}
	}
	return geohash.ExpandNeighbors(origin, steps)
}

// ringSteps is the neighbor depth for a radius using the nominal cell size.
func ringSteps(radiusMiles float64) int {
	return int(math.Max(0, math.Ceil(spatial.MilesToKm(radiusMiles)/nominalCellKm)-1))
}

// coverageSteps is the neighbor depth that guarantees every point within
// the radius lies in a queried cell, measured on the origin cell's actual
// edges at the center latitude.
func coverageSteps(origin string, center model.Coordinates, radiusMiles float64) (int, error) {
	b, err := geohash.Bounds(origin)
	if err != nil {
		return 0, err
	}
	width := spatial.HaversineMeters(center.Lat, b.Min(0), center.Lat, b.Max(0))
	height := spatial.HaversineMeters(b.Min(1), center.Lng, b.Max(1), center.Lng)
	edge := math.Min(width, height)
	if edge <= 0 {
		return maxCoverageSteps, nil
	}
	steps := int(math.Ceil(spatial.MilesToMeters(radiusMiles) / edge))
	return min(steps, maxCoverageSteps), nil
}

// fetch queries every cell concurrently and merges the pages by EventID in
// cell order, so the result does not depend on completion order.
func (p *Planner) fetch(ctx context.Context, cells []string, w Window) ([]model.Event, error) {
	perCell := make([][]model.Event, len(cells))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrency)
	for i, cell := range cells {
		g.Go(func() error {
			evs, err := p.fetchCell(gctx, cell, w)
			if err != nil {
				return err
			}
			perCell[i] = evs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]int)
	var merged []model.Event
	for _, evs := range perCell {
		for _, ev := range evs {
			if i, ok := byID[ev.EventID]; ok {
				merged[i] = ev
				continue
			}
			byID[ev.EventID] = len(merged)
			merged = append(merged, ev)
		}
	}
	return merged, nil
}

// fetchCell follows continuation cursors for one cell until the index is
// exhausted or MaxItemsPerCell is reached.
func (p *Planner) fetchCell(ctx context.Context, cell string, w Window) ([]model.Event, error) {
	q := store.CellQuery{Cell: cell, Limit: p.cfg.PageSize}
	q.Start, q.End = w.cellBounds()

	var out []model.Event
	for {
		page, err := p.index.QueryCell(ctx, q)
		p.metrics.CellQuery(err)
		if err != nil {
			return nil, eris.Wrapf(model.ErrUpstreamUnavailable, "search: query cell %s: %v", cell, err)
		}
		out = append(out, page.Items...)
		if len(out) >= p.cfg.MaxItemsPerCell {
			zap.L().Warn("search: cell truncated",
				zap.String("cell", cell),
				zap.Int("limit", p.cfg.MaxItemsPerCell),
			)
			return out[:p.cfg.MaxItemsPerCell], nil
		}
		if page.Next == "" {
			return out, nil
		}
		q.Cursor = page.Next
	}
}

func (p *Planner) refine(events []model.Event, center model.Coordinates, radiusMiles float64, w Window, wantTags []string) []model.SearchItem {
	limit := spatial.MilesToMeters(radiusMiles)
	items := make([]model.SearchItem, 0, len(events))
	for _, ev := range events {
		d := spatial.Distance(center, ev.Coordinates)
		if d > limit {
			continue
		}
		if !w.Contains(ev.StartTime, ev.EffectiveEnd()) {
			continue
		}
		if len(wantTags) > 0 && !p.tags.Intersects(ev.Tags, wantTags) {
			continue
		}
		items = append(items, model.SearchItem{Event: ev, DistanceMeters: d})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].StartTime != items[j].StartTime {
			return items[i].StartTime < items[j].StartTime
		}
		return items[i].EventID < items[j].EventID
	})
	return items
}
