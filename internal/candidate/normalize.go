// Package candidate turns raw event objects from a text generator into
// validated, tagged records.
package candidate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/sells-group/nearby-events/internal/metrics"
	"github.com/sells-group/nearby-events/internal/model"
	"github.com/sells-group/nearby-events/internal/tags"
)

// Config tunes the normalizer.
type Config struct {
	BlockedDomains []string      `yaml:"blocked_domains" mapstructure:"blocked_domains"`
	VerifyLinks    bool          `yaml:"verify_links" mapstructure:"verify_links"`
	LinkTimeout    time.Duration `yaml:"link_timeout" mapstructure:"link_timeout"`
	LinkWorkers    int           `yaml:"link_workers" mapstructure:"link_workers"`
}

// Context is the request a batch was generated for.
type Context struct {
	City     string
	Region   string
	Country  string
	Timezone string
	// Strict additionally requires a timezone and a complete location.
	Strict bool
	Debug  bool
}

// Normalizer validates candidate batches. It holds no per-request state.
type Normalizer struct {
	tags     *tags.Classifier
	blocked  []string
	links    LinkChecker
	workers  int
	validate *validator.Validate
	metrics  *metrics.Metrics
	fold     cases.Caser
	foldMu   sync.Mutex
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLinkChecker enables the source liveness check.
func WithLinkChecker(lc LinkChecker) Option {
	return func(n *Normalizer) { n.links = lc }
}

// WithMetrics records stage counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Normalizer) { n.metrics = m }
}

// New creates a Normalizer. An empty blocklist falls back to
// DefaultBlockedDomains.
func New(classifier *tags.Classifier, cfg Config, opts ...Option) *Normalizer {
	if classifier == nil {
		classifier = tags.Default()
	}
	blocked := cfg.BlockedDomains
	if len(blocked) == 0 {
		blocked = DefaultBlockedDomains
	}
	n := &Normalizer{
		tags:     classifier,
		blocked:  blocked,
		workers:  cfg.LinkWorkers,
		validate: newValidator(),
		fold:     cases.Fold(),
	}
	if n.workers <= 0 {
		n.workers = 8
	}
	if cfg.VerifyLinks {
		n.links = NewHTTPLinkChecker(cfg.LinkTimeout)
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// BlockedDomains returns the active blocklist.
func (n *Normalizer) BlockedDomains() []string {
	return append([]string(nil), n.blocked...)
}

// Normalize runs raw through date/time extraction, location backfill,
// deduplication, schema validation with relaxed fallback, the source-domain
// filter, the optional link check and tag resolution. It never fails; bad
// records are dropped.
func (n *Normalizer) Normalize(ctx context.Context, raw []model.Candidate, nc Context) []model.Candidate {
	log := zap.L().With(
		zap.String("city", nc.City),
		zap.String("region", nc.Region),
		zap.Int("received", len(raw)),
	)
	n.metrics.Candidates("received", len(raw))

	normalized := make([]model.Candidate, 0, len(raw))
	for _, c := range raw {
		if c == nil {
			continue
		}
		normalized = append(normalized, normalizeRecord(c, nc))
	}
	if nc.Debug {
		for _, c := range normalized {
			log.Debug("normalized event times",
				zap.String("title", c.String("title")),
				zap.String("start_date", c.String("start_date")),
				zap.String("start_time", c.String("start_time")),
				zap.String("end_date", c.String("end_date")),
				zap.String("end_time", c.String("end_time")),
			)
		}
	}

	deduped := n.dedupe(normalized)
	n.metrics.Candidates("duplicate", len(normalized)-len(deduped))

	valid := n.validateBatch(log, deduped, nc)
	n.metrics.Candidates("invalid", len(deduped)-len(valid))

	allowed := make([]model.Candidate, 0, len(valid))
	for _, c := range valid {
		if IsBlockedDomain(c.String("source_url"), n.blocked) {
			continue
		}
		allowed = append(allowed, c)
	}
	n.metrics.Candidates("blocked", len(valid)-len(allowed))

	live := n.checkLinks(ctx, allowed)
	n.metrics.Candidates("unreachable", len(allowed)-len(live))

	for _, c := range live {
		c["tags"] = n.resolveTags(c)
	}
	n.metrics.Candidates("kept", len(live))

	log.Info("normalized candidates", zap.Int("kept", len(live)))
	return live
}

// normalizeRecord extracts dates and times and backfills the location. The
// input is not modified.
func normalizeRecord(in model.Candidate, nc Context) model.Candidate {
	c := in.Clone()

	startDate, startClock, ok := ExtractDateAndTime(c.String("start_date"))
	if ok {
		c["start_date"] = startDate
	}
	startTime, ok := ToHHMM(c.String("start_time"))
	if !ok {
		startTime = startClock
	}

	endDate, endClock, ok := ExtractDateAndTime(c.String("end_date"))
	if ok {
		c["end_date"] = endDate
	} else {
		delete(c, "end_date")
	}
	endTime, ok := ToHHMM(c.String("end_time"))
	if !ok {
		endTime = endClock
	}

	setOrDelete(c, "start_time", startTime)
	setOrDelete(c, "end_time", endTime)

	if tz, present := c["timezone"]; !present || tz == nil || tz == "" {
		setOrDelete(c, "timezone", nc.Timezone)
	}

	loc := c.Object("location")
	if loc == nil {
		loc = make(map[string]any)
	}
	for k, v := range map[string]string{"city": nc.City, "state": nc.Region, "country": nc.Country} {
		if v = strings.TrimSpace(v); v != "" {
			loc[k] = v
		}
	}
	if len(loc) > 0 || c["location"] != nil {
		c["location"] = loc
	}
	return c
}

func setOrDelete(c model.Candidate, key, value string) {
	if value == "" {
		delete(c, key)
		return
	}
	c[key] = value
}

// dedupe keeps the first record per casefolded (title, start_date, venue).
func (n *Normalizer) dedupe(in []model.Candidate) []model.Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.Candidate, 0, len(in))
	for _, c := range in {
		venue, _ := c.Object("location")["venue"].(string)
		key := n.key(c.String("title")) + "|" + n.key(c.String("start_date")) + "|" + n.key(venue)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func (n *Normalizer) key(s string) string {
	n.foldMu.Lock()
	defer n.foldMu.Unlock()
	return n.fold.String(strings.TrimSpace(s))
}

// validateBatch returns the batch unchanged when every record passes. Any
// failure switches the whole batch to the relaxed minimum filter.
func (n *Normalizer) validateBatch(log *zap.Logger, batch []model.Candidate, nc Context) []model.Candidate {
	failures := 0
	for i, c := range batch {
		if err := validateRecord(n.validate, c, nc.Strict); err != nil {
			failures++
			log.Debug("invalid candidate",
				zap.Int("index", i),
				zap.String("title", c.String("title")),
				zap.String("source_url", c.String("source_url")),
				zap.Error(err),
			)
		}
	}
	if failures == 0 {
		return batch
	}

	log.Warn("candidate validation failed, applying relaxed filter", zap.Int("invalid", failures))
	out := make([]model.Candidate, 0, len(batch))
	for _, c := range batch {
		if meetsMinimum(c, nc.Strict) {
			out = append(out, c)
		}
	}
	return out
}

// checkLinks drops records whose source page does not answer. Order is kept.
func (n *Normalizer) checkLinks(ctx context.Context, in []model.Candidate) []model.Candidate {
	if n.links == nil || len(in) == 0 {
		return in
	}

	ok := make([]bool, len(in))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for i, c := range in {
		g.Go(func() error {
			ok[i] = n.links.Reachable(gctx, c.String("source_url"))
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Candidate, 0, len(in))
	for i, c := range in {
		if ok[i] {
			out = append(out, c)
		}
	}
	return out
}

// resolveTags keeps provided vocabulary tags, else classifies title and
// location.
func (n *Normalizer) resolveTags(c model.Candidate) []string {
	if provided := n.tags.Canonicalize(c["tags"]); len(provided) > 0 {
		return provided
	}
	return n.tags.Select(c.String("title"), locationText(c.Object("location")))
}

func locationText(loc map[string]any) string {
	if loc == nil {
		return ""
	}
	parts := make([]string, 0, 6)
	for _, k := range []string{"venue", "name", "address", "city", "state", "zip"} {
		if s, ok := loc[k].(string); ok {
			parts = append(parts, s)
		}
	}
	return model.JoinNonEmpty(" ", parts...)
}
