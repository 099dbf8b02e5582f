package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nearby-events/internal/resilience"
)

func TestGenerateContent_Request(t *testing.T) {
	var body map[string]any
	var path, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.URL.Query().Get("key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "[]"}]}, "finishReason": "STOP"}]}`))
	}))
	defer srv.Close()

	temp := 0.2
	c := NewClient("secret", WithBaseURL(srv.URL+"/"))
	resp, err := c.GenerateContent(context.Background(), TextRequest("sys", "user", &GenerationConfig{
		Temperature: &temp, TopK: 32, TopP: 0.95, MaxOutputTokens: 30000,
	}))
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Text())

	assert.Equal(t, "/gemini-2.5-pro:generateContent", path)
	assert.Equal(t, "secret", key)
	assert.Equal(t, []any{map[string]any{"google_search": map[string]any{}}}, body["tools"])
	sys := body["systemInstruction"].(map[string]any)
	assert.Equal(t, "system", sys["role"])
	cfg := body["generationConfig"].(map[string]any)
	assert.Equal(t, float64(32), cfg["topK"])
	assert.Equal(t, float64(30000), cfg["maxOutputTokens"])
}

func TestGenerateContent_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{"overloaded", http.StatusServiceUnavailable, true},
		{"rate limited", http.StatusTooManyRequests, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"message": "nope"}}`))
			}))
			defer srv.Close()

			_, err := NewClient("k", WithBaseURL(srv.URL)).GenerateContent(context.Background(), GenerateRequest{})
			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestGenerateContent_NoKey(t *testing.T) {
	_, err := NewClient("").GenerateContent(context.Background(), GenerateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestGenerateContent_ErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := NewClient("super-secret", WithBaseURL(srv.URL)).GenerateContent(context.Background(), GenerateRequest{})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "super-secret")
}

func TestGenerateResponse_Text(t *testing.T) {
	inline := base64.StdEncoding.EncodeToString([]byte(`[{"title":"x"}]`))
	tests := []struct {
		name string
		resp GenerateResponse
		want string
	}{
		{"empty", GenerateResponse{}, ""},
		{
			"first text part wins",
			GenerateResponse{Candidates: []Candidate{{Content: Content{Parts: []Part{{Text: "a"}, {Text: "b"}}}}}},
			"a",
		},
		{
			"inline data fallback",
			GenerateResponse{Candidates: []Candidate{{Content: Content{Parts: []Part{{InlineData: &InlineData{Data: inline}}}}}}},
			`[{"title":"x"}]`,
		},
		{
			"later candidate",
			GenerateResponse{Candidates: []Candidate{
				{Content: Content{Parts: []Part{{InlineData: &InlineData{Data: "!!!"}}}}},
				{Content: Content{Parts: []Part{{Text: " later "}}}},
			}},
			"later",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resp.Text())
		})
	}
}
