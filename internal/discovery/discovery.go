// Package discovery asks a web-searching text generator for public events in
// a place and date window, then normalizes what comes back.
package discovery

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-events/internal/candidate"
	"github.com/sells-group/nearby-events/internal/metrics"
	"github.com/sells-group/nearby-events/internal/model"
	"github.com/sells-group/nearby-events/internal/resilience"
	"github.com/sells-group/nearby-events/internal/spatial"
	"github.com/sells-group/nearby-events/pkg/geocode"
)

const (
	// DefaultRadiusMiles applies when a request sets no usable radius.
	DefaultRadiusMiles = 5.0
	// MaxRadiusMiles caps the radius passed to the generator.
	MaxRadiusMiles = 100.0
	// DefaultTimeout bounds one generator call including retries.
	DefaultTimeout = 45 * time.Second

	dateLayout   = "2006-01-02"
	snippetChars = 500
)

// Config tunes the finder.
type Config struct {
	// Provider selects the generator: gemini, anthropic or perplexity.
	Provider string        `yaml:"provider" mapstructure:"provider"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Strict requires a timezone and a complete location on every record.
	Strict  bool                     `yaml:"strict" mapstructure:"strict"`
	Retry   resilience.Backoff       `yaml:"retry" mapstructure:"retry"`
	Breaker resilience.BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// Request is a discovery query as received. Place names may be left empty
// when Lat and Lng are given.
type Request struct {
	City      string
	Region    string
	Country   string
	StartDate string
	EndDate   string
	Timezone  string

	RadiusMiles *float64
	Lat, Lng    *float64

	PreferLocal bool
	Debug       bool
}

// Area is a resolved request: every place and window field is set and the
// radius is clamped.
type Area struct {
	City        string
	Region      string
	Country     string
	StartDate   string
	EndDate     string
	Timezone    string
	RadiusMiles float64
	PreferLocal bool
	Debug       bool
}

// Finder runs discovery requests against one generator.
type Finder struct {
	gen      Generator
	geocoder geocode.Client
	norm     *candidate.Normalizer
	policy   *resilience.Policy
	cfg      Config
	metrics  *metrics.Metrics
}

// New creates a Finder. geocoder may be nil, in which case coordinates are
// accepted but never reverse-geocoded.
func New(gen Generator, geocoder geocode.Client, norm *candidate.Normalizer, cfg Config, m *metrics.Metrics) *Finder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if norm == nil {
		norm = candidate.New(nil, candidate.Config{})
	}
	return &Finder{
		gen:      gen,
		geocoder: geocoder,
		norm:     norm,
		policy:   resilience.NewPolicy(gen.Name(), cfg.Retry, cfg.Breaker),
		cfg:      cfg,
		metrics:  m,
	}
}

// Find resolves req and returns the validated candidates. An empty result is
// not an error.
func (f *Finder) Find(ctx context.Context, req Request) ([]model.Candidate, error) {
	area, err := f.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return f.Discover(ctx, area)
}

// Resolve backfills the place from coordinates, clamps the radius and checks
// the required fields.
func (f *Finder) Resolve(ctx context.Context, req Request) (Area, error) {
	a := Area{
		City:        strings.TrimSpace(req.City),
		Region:      strings.TrimSpace(req.Region),
		Country:     strings.TrimSpace(req.Country),
		StartDate:   strings.TrimSpace(req.StartDate),
		EndDate:     strings.TrimSpace(req.EndDate),
		Timezone:    strings.TrimSpace(req.Timezone),
		RadiusMiles: clampRadius(req.RadiusMiles),
		PreferLocal: req.PreferLocal,
		Debug:       req.Debug,
	}

	if (req.Lat == nil) != (req.Lng == nil) {
		return Area{}, eris.Wrap(model.ErrInvalidLocation, "provide both lat and lng or neither")
	}
	if req.Lat != nil {
		if err := spatial.ValidateCoordinates(*req.Lat, *req.Lng); err != nil {
			return Area{}, err
		}
		f.backfill(ctx, &a, *req.Lat, *req.Lng)
	}

	if a.City == "" || a.Region == "" || a.Country == "" {
		return Area{}, eris.Wrap(model.ErrInvalidLocation, "city, state (region_or_state), country are required")
	}
	if a.StartDate == "" || a.EndDate == "" || a.Timezone == "" {
		return Area{}, eris.Wrap(model.ErrValidationFailed, "start_date, end_date, timezone are required")
	}

	start, err := time.Parse(dateLayout, a.StartDate)
	if err != nil {
		return Area{}, eris.Wrapf(model.ErrInvalidTimeRange, "start_date %q is not YYYY-MM-DD", a.StartDate)
	}
	end, err := time.Parse(dateLayout, a.EndDate)
	if err != nil {
		return Area{}, eris.Wrapf(model.ErrInvalidTimeRange, "end_date %q is not YYYY-MM-DD", a.EndDate)
	}
	if end.Before(start) {
		return Area{}, eris.Wrap(model.ErrInvalidTimeRange, "end_date is before start_date")
	}
	return a, nil
}

// backfill fills empty place fields from a reverse geocode. Failures leave
// the area unchanged.
func (f *Finder) backfill(ctx context.Context, a *Area, lat, lng float64) {
	if f.geocoder == nil || (a.City != "" && a.Region != "" && a.Country != "") {
		return
	}
	addr, err := f.geocoder.Reverse(ctx, lat, lng)
	if err != nil {
		zap.L().Warn("discovery: reverse geocode failed",
			zap.Float64("lat", lat), zap.Float64("lng", lng), zap.Error(err))
		return
	}
	if addr == nil {
		zap.L().Warn("discovery: reverse geocode returned no result",
			zap.Float64("lat", lat), zap.Float64("lng", lng))
		return
	}
	if a.City == "" {
		a.City = addr.City
	}
	if a.Region == "" {
		a.Region = addr.Region
	}
	if a.Country == "" {
		a.Country = addr.Country
	}
}

func clampRadius(r *float64) float64 {
	if r == nil || math.IsNaN(*r) || math.IsInf(*r, 0) {
		return DefaultRadiusMiles
	}
	return math.Min(MaxRadiusMiles, math.Max(0, *r))
}

// Discover calls the generator for a resolved area and normalizes the reply.
func (f *Finder) Discover(ctx context.Context, a Area) ([]model.Candidate, error) {
	log := zap.L().With(
		zap.String("provider", f.gen.Name()),
		zap.String("city", a.City),
		zap.String("region", a.Region),
		zap.String("start_date", a.StartDate),
		zap.String("end_date", a.EndDate),
	)

	tool := f.gen.Tool()
	prompt := Prompt{System: SystemPrompt(tool), User: UserPrompt(a, tool)}

	callCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := resilience.Call(callCtx, f.policy, func(ctx context.Context) (string, error) {
		return f.gen.Generate(ctx, prompt)
	})
	f.metrics.Upstream(f.gen.Name(), start, err)
	if err != nil {
		return nil, f.classify(ctx, callCtx, err)
	}

	if a.Debug {
		log.Debug("generator response snippet", zap.String("text", snippet(text)))
	}

	raw := candidate.ExtractCandidates(text)
	if a.Debug {
		for i, c := range raw[:min(3, len(raw))] {
			log.Debug("raw candidate",
				zap.Int("index", i),
				zap.String("title", c.String("title")),
				zap.String("start_date", c.String("start_date")),
				zap.String("end_date", c.String("end_date")),
				zap.String("source_url", c.String("source_url")),
			)
		}
	}
	log.Info("generator returned candidates", zap.Int("raw", len(raw)), zap.Duration("elapsed", time.Since(start)))

	return f.norm.Normalize(ctx, raw, candidate.Context{
		City:     a.City,
		Region:   a.Region,
		Country:  a.Country,
		Timezone: a.Timezone,
		Strict:   f.cfg.Strict,
		Debug:    a.Debug,
	}), nil
}

func (f *Finder) classify(ctx, callCtx context.Context, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrapf(model.ErrUpstreamTimeout, "discovery: %s did not answer within %s", f.gen.Name(), f.cfg.Timeout)
	}
	if ctx.Err() != nil {
		return eris.Wrap(ctx.Err(), "discovery: request canceled")
	}
	return eris.Wrapf(model.ErrUpstreamUnavailable, "discovery: %s: %v", f.gen.Name(), err)
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetChars {
		return s
	}
	return string(r[:snippetChars])
}
