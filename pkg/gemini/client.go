// Package gemini is a REST client for the Gemini generateContent endpoint
// with Google Search grounding.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nearby-events/internal/resilience"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel   = "gemini-2.5-pro"
)

// Client generates content with a Gemini model.
type Client interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is the request body for models/{model}:generateContent.
type GenerateRequest struct {
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Contents          []Content         `json:"contents"`
	Tools             []Tool            `json:"tools,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is one turn of the conversation.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part holds text or inline binary data.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData is base64 encoded content.
type InlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

// Tool enables a server-side tool. GoogleSearch is the only one used here.
type Tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

// GoogleSearchTool returns the grounding tool entry.
func GoogleSearchTool() Tool {
	return Tool{GoogleSearch: &struct{}{}}
}

// GenerationConfig controls sampling.
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopK            int      `json:"topK,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

// TextRequest builds a grounded single-turn request.
func TextRequest(system, user string, cfg *GenerationConfig) GenerateRequest {
	return GenerateRequest{
		SystemInstruction: &Content{Role: "system", Parts: []Part{{Text: system}}},
		Contents:          []Content{{Role: "user", Parts: []Part{{Text: user}}}},
		Tools:             []Tool{GoogleSearchTool()},
		GenerationConfig:  cfg,
	}
}

// GenerateResponse is the generateContent response.
type GenerateResponse struct {
	Candidates    []Candidate   `json:"candidates"`
	UsageMetadata UsageMetadata `json:"usageMetadata"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

// UsageMetadata reports token counts.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

// Text returns the first text part of the first candidate. Failing that, it
// joins the text and decoded inline parts of the first candidate that has any.
func (r *GenerateResponse) Text() string {
	if len(r.Candidates) > 0 {
		for _, p := range r.Candidates[0].Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	for _, c := range r.Candidates {
		var parts []string
		for _, p := range c.Content.Parts {
			if s := partText(p); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			return strings.TrimSpace(strings.Join(parts, "\n"))
		}
	}
	return ""
}

func partText(p Part) string {
	if p.Text != "" {
		return p.Text
	}
	if p.InlineData == nil || p.InlineData.Data == "" {
		return ""
	}
	b, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
	if err != nil {
		return ""
	}
	return string(b)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the models endpoint base.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates a Gemini client. Deadlines come from the caller's context.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http: &http.Client{
			Transport: &http.Transport{IdleConnTimeout: 90 * time.Second},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, eris.New("gemini: api key not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: marshal request")
	}

	endpoint := c.baseURL + "/" + url.PathEscape(c.model) + ":generateContent?key=" + url.QueryEscape(c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// the URL carries the key; keep it out of the error text
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, eris.Wrap(err, "gemini: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("gemini", resp.StatusCode, respBody)
	}

	var out GenerateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "gemini: unmarshal response")
	}
	return &out, nil
}
