package discovery

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nearby-events/pkg/anthropic"
	"github.com/sells-group/nearby-events/pkg/gemini"
	"github.com/sells-group/nearby-events/pkg/perplexity"
)

// Generator is a web-searching text-generation provider.
type Generator interface {
	// Name is the provider label used in logs and metrics.
	Name() string
	// Tool names the provider's search capability for prompts.
	Tool() SearchTool
	// Generate returns the raw response text.
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Sampling settings shared by the adapters.
const (
	temperature     = 0.2
	maxOutputTokens = 30000
)

// GeminiGenerator calls generateContent with the google_search tool.
type GeminiGenerator struct {
	client gemini.Client
}

// NewGeminiGenerator wraps a Gemini client.
func NewGeminiGenerator(client gemini.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Name() string { return "gemini" }

func (g *GeminiGenerator) Tool() SearchTool {
	return SearchTool{Grounding: "Google Search grounding tool", Results: "Google Search"}
}

func (g *GeminiGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	t := temperature
	resp, err := g.client.GenerateContent(ctx, gemini.TextRequest(p.System, p.User, &gemini.GenerationConfig{
		Temperature:     &t,
		TopK:            32,
		TopP:            0.95,
		MaxOutputTokens: maxOutputTokens,
	}))
	if err != nil {
		return "", eris.Wrap(err, "discovery: gemini generate")
	}
	return resp.Text(), nil
}

// AnthropicConfig selects the model and web search budget.
type AnthropicConfig struct {
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxSearches int64  `yaml:"max_searches" mapstructure:"max_searches"`
}

// AnthropicGenerator calls the Messages API with the server-side web search
// tool. Blocked domains are excluded at the tool level.
type AnthropicGenerator struct {
	client  anthropic.Client
	cfg     AnthropicConfig
	blocked []string
}

// NewAnthropicGenerator wraps an Anthropic client.
func NewAnthropicGenerator(client anthropic.Client, cfg AnthropicConfig, blocked []string) *AnthropicGenerator {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5-20250929"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 16000
	}
	if cfg.MaxSearches <= 0 {
		cfg.MaxSearches = 8
	}
	return &AnthropicGenerator{client: client, cfg: cfg, blocked: blocked}
}

func (g *AnthropicGenerator) Name() string     { return "anthropic" }
func (g *AnthropicGenerator) Tool() SearchTool { return GenericSearchTool }

func (g *AnthropicGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	t := temperature
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		System:      anthropic.CachedSystem(p.System, "1h"),
		Messages:    []anthropic.Message{{Role: "user", Content: p.User}},
		Temperature: &t,
		WebSearch:   &anthropic.WebSearch{MaxUses: g.cfg.MaxSearches, BlockedDomains: g.blocked},
	})
	if err != nil {
		return "", eris.Wrap(err, "discovery: anthropic generate")
	}
	resp.Usage.LogCost(g.cfg.Model, "discovery")
	return resp.Text(), nil
}

// PerplexityGenerator calls chat completions, which always search. Blocked
// domains are pushed as search_domain_filter exclusions.
type PerplexityGenerator struct {
	client  perplexity.Client
	model   string
	blocked []string
}

// NewPerplexityGenerator wraps a Perplexity client. An empty model uses the
// client's default.
func NewPerplexityGenerator(client perplexity.Client, model string, blocked []string) *PerplexityGenerator {
	return &PerplexityGenerator{client: client, model: model, blocked: blocked}
}

func (g *PerplexityGenerator) Name() string     { return "perplexity" }
func (g *PerplexityGenerator) Tool() SearchTool { return GenericSearchTool }

func (g *PerplexityGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	t := temperature
	maxTokens := maxOutputTokens
	resp, err := g.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: g.model,
		Messages: []perplexity.Message{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature:        &t,
		MaxTokens:          &maxTokens,
		SearchDomainFilter: perplexity.ExcludeDomains(g.blocked),
	})
	if err != nil {
		return "", eris.Wrap(err, "discovery: perplexity generate")
	}
	return resp.Text(), nil
}
