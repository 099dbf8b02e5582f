package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/nearby-events/internal/candidate"
	"github.com/sells-group/nearby-events/internal/discovery"
	"github.com/sells-group/nearby-events/internal/resilience"
	"github.com/sells-group/nearby-events/internal/search"
	"github.com/sells-group/nearby-events/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store      store.Config       `yaml:"store" mapstructure:"store"`
	Server     ServerConfig       `yaml:"server" mapstructure:"server"`
	Log        LogConfig          `yaml:"log" mapstructure:"log"`
	Search     search.Config      `yaml:"search" mapstructure:"search"`
	Discovery  discovery.Config   `yaml:"discovery" mapstructure:"discovery"`
	Candidate  candidate.Config   `yaml:"candidate" mapstructure:"candidate"`
	Anthropic  AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig   `yaml:"perplexity" mapstructure:"perplexity"`
	Gemini     GeminiConfig       `yaml:"gemini" mapstructure:"gemini"`
	Geocode    GeocodeConfig      `yaml:"geocode" mapstructure:"geocode"`
	Tags       TagsConfig         `yaml:"tags" mapstructure:"tags"`
	Resilience resilience.Backoff `yaml:"resilience" mapstructure:"resilience"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxSearches int64  `yaml:"max_searches" mapstructure:"max_searches"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// GeocodeConfig holds Google geocoding settings.
type GeocodeConfig struct {
	Key            string        `yaml:"key" mapstructure:"key"`
	RateLimit      float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	PlacesFallback bool          `yaml:"places_fallback" mapstructure:"places_fallback"`
	CacheTTL       time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheSize      int           `yaml:"cache_size" mapstructure:"cache_size"`
}

// TagsConfig points at an optional keyword table overriding the built-in one.
type TagsConfig struct {
	KeywordsFile string `yaml:"keywords_file" mapstructure:"keywords_file"`
}

// apiKeyEnv maps key settings to the provider's conventional variable, read
// when the NEARBY_ variable is unset.
var apiKeyEnv = map[string]string{
	"anthropic.key":  "ANTHROPIC_API_KEY",
	"perplexity.key": "PERPLEXITY_API_KEY",
	"gemini.key":     "GEMINI_API_KEY",
	"geocode.key":    "GOOGLE_MAPS_API_KEY",
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("NEARBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range apiKeyEnv {
		if err := v.BindEnv(key, "NEARBY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	sc := search.DefaultConfig()
	backoff := resilience.DefaultBackoff()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "nearby.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("search.max_concurrency", sc.MaxConcurrency)
	v.SetDefault("search.max_items_per_cell", sc.MaxItemsPerCell)
	v.SetDefault("search.page_size", sc.PageSize)
	v.SetDefault("search.max_radius_miles", sc.MaxRadiusMiles)
	v.SetDefault("search.full_coverage", sc.FullCoverage)

	v.SetDefault("discovery.provider", "gemini")
	v.SetDefault("discovery.timeout", discovery.DefaultTimeout)
	v.SetDefault("discovery.strict", false)
	v.SetDefault("discovery.retry.attempts", 2)
	v.SetDefault("discovery.retry.initial", time.Second)
	v.SetDefault("discovery.retry.max", 5*time.Second)
	v.SetDefault("discovery.retry.jitter", 0.25)
	v.SetDefault("discovery.breaker.threshold", 5)
	v.SetDefault("discovery.breaker.reset_after", 30*time.Second)

	v.SetDefault("candidate.blocked_domains", candidate.DefaultBlockedDomains)
	v.SetDefault("candidate.verify_links", false)
	v.SetDefault("candidate.link_timeout", 5*time.Second)
	v.SetDefault("candidate.link_workers", 8)

	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 16000)
	v.SetDefault("anthropic.max_searches", 8)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta/models")
	v.SetDefault("gemini.model", "gemini-2.5-pro")

	v.SetDefault("geocode.rate_limit", 10.0)
	v.SetDefault("geocode.places_fallback", true)
	v.SetDefault("geocode.cache_ttl", 24*time.Hour)
	v.SetDefault("geocode.cache_size", 10000)

	v.SetDefault("tags.keywords_file", "")

	v.SetDefault("resilience.attempts", backoff.Attempts)
	v.SetDefault("resilience.initial", backoff.Initial)
	v.SetDefault("resilience.max", backoff.Max)
	v.SetDefault("resilience.jitter", backoff.Jitter)
}

// Validate checks the settings the selected components need.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: store.driver must be postgres or sqlite, got %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	switch c.Discovery.Provider {
	case "gemini", "anthropic", "perplexity":
	default:
		return eris.Errorf("config: discovery.provider must be gemini, anthropic or perplexity, got %q", c.Discovery.Provider)
	}
	return nil
}

// DiscoveryKey returns the API key of the configured discovery provider.
func (c *Config) DiscoveryKey() string {
	switch c.Discovery.Provider {
	case "anthropic":
		return c.Anthropic.Key
	case "perplexity":
		return c.Perplexity.Key
	default:
		return c.Gemini.Key
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
