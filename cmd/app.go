package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-events/internal/candidate"
	"github.com/sells-group/nearby-events/internal/config"
	"github.com/sells-group/nearby-events/internal/discovery"
	"github.com/sells-group/nearby-events/internal/events"
	"github.com/sells-group/nearby-events/internal/metrics"
	"github.com/sells-group/nearby-events/internal/resilience"
	"github.com/sells-group/nearby-events/internal/search"
	"github.com/sells-group/nearby-events/internal/store"
	"github.com/sells-group/nearby-events/internal/tags"
	anthropicpkg "github.com/sells-group/nearby-events/pkg/anthropic"
	"github.com/sells-group/nearby-events/pkg/gemini"
	"github.com/sells-group/nearby-events/pkg/geocode"
	"github.com/sells-group/nearby-events/pkg/perplexity"
)

// appEnv holds the wired services shared by the commands.
type appEnv struct {
	Store    store.Store
	Geocoder geocode.Client
	Metrics  *metrics.Metrics
	Planner  *search.Planner
	Events   *events.Service
	// Finder is nil when the discovery provider has no API key.
	Finder *discovery.Finder
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initApp opens and migrates the store and wires every service from cfg.
func initApp(ctx context.Context, c *config.Config) (*appEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	classifier, err := initTags(c.Tags)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gc := initGeocoder(c)

	env := &appEnv{
		Store:    st,
		Geocoder: gc,
		Metrics:  m,
		Planner:  search.New(st, gc, classifier, c.Search, m),
		Events:   events.New(st, gc, classifier),
	}

	gen, err := initGenerator(c)
	if err != nil {
		zap.L().Warn("ai discovery disabled", zap.String("provider", c.Discovery.Provider), zap.Error(err))
		return env, nil
	}

	norm := candidate.New(classifier, c.Candidate, candidate.WithMetrics(m))
	env.Finder = discovery.New(gen, gc, norm, c.Discovery, m)

	zap.L().Info("ai discovery enabled",
		zap.String("provider", gen.Name()),
		zap.Bool("verify_links", c.Candidate.VerifyLinks),
	)
	return env, nil
}

func initTags(c config.TagsConfig) (*tags.Classifier, error) {
	if c.KeywordsFile == "" {
		return tags.Default(), nil
	}
	classifier, err := tags.Load(c.KeywordsFile)
	if err != nil {
		return nil, eris.Wrapf(err, "load tag keywords %s", c.KeywordsFile)
	}
	return classifier, nil
}

// initGeocoder returns nil without a key; searches and creates then need
// explicit coordinates.
func initGeocoder(c *config.Config) geocode.Client {
	if c.Geocode.Key == "" {
		zap.L().Debug("NEARBY_GEOCODE_KEY not set, geocoding disabled")
		return nil
	}
	policy := resilience.NewPolicy("geocode", c.Resilience, resilience.BreakerConfig{})
	gc := geocode.NewClient(c.Geocode.Key,
		geocode.WithRateLimit(c.Geocode.RateLimit),
		geocode.WithPlacesFallback(c.Geocode.PlacesFallback),
		geocode.WithPolicy(policy),
	)
	if c.Geocode.CacheSize > 0 {
		return geocode.NewCachedClient(gc, c.Geocode.CacheTTL, c.Geocode.CacheSize)
	}
	return gc
}

// initGenerator builds the generator for the configured provider.
func initGenerator(c *config.Config) (discovery.Generator, error) {
	key := c.DiscoveryKey()
	if key == "" {
		return nil, eris.Errorf("no API key for %s", c.Discovery.Provider)
	}
	blocked := c.Candidate.BlockedDomains
	if len(blocked) == 0 {
		blocked = candidate.DefaultBlockedDomains
	}

	switch c.Discovery.Provider {
	case "anthropic":
		return discovery.NewAnthropicGenerator(anthropicpkg.NewClient(key), discovery.AnthropicConfig{
			Model:       c.Anthropic.Model,
			MaxTokens:   c.Anthropic.MaxTokens,
			MaxSearches: c.Anthropic.MaxSearches,
		}, blocked), nil
	case "perplexity":
		client := perplexity.NewClient(key,
			perplexity.WithBaseURL(c.Perplexity.BaseURL),
			perplexity.WithModel(c.Perplexity.Model),
		)
		return discovery.NewPerplexityGenerator(client, c.Perplexity.Model, blocked), nil
	case "gemini":
		client := gemini.NewClient(key,
			gemini.WithBaseURL(c.Gemini.BaseURL),
			gemini.WithModel(c.Gemini.Model),
		)
		return discovery.NewGeminiGenerator(client), nil
	default:
		return nil, eris.Errorf("unknown discovery provider %q", c.Discovery.Provider)
	}
}
