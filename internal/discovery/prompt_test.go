package discovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemPrompt_NamesTool(t *testing.T) {
	gemini := SystemPrompt(NewGeminiGenerator(nil).Tool())
	assert.Contains(t, gemini, "Use the Google Search grounding tool before answering")
	assert.Contains(t, gemini, "click through Google Search results")

	generic := SystemPrompt(GenericSearchTool)
	assert.Contains(t, generic, "Use the web search tool before answering")
	assert.NotContains(t, generic, "%!")
	assert.Contains(t, generic, `"source_url": "string"`)
}

func TestUserPrompt(t *testing.T) {
	a := Area{
		City:        "Austin",
		Region:      "TX",
		Country:     "US",
		StartDate:   "2025-11-01",
		EndDate:     "2025-11-02",
		Timezone:    "America/Chicago",
		RadiusMiles: 7.5,
		PreferLocal: true,
	}
	got := UserPrompt(a, GenericSearchTool)
	lines := strings.Split(got, "\n")

	assert.Equal(t, "Find real-world public events for the requested place and window.", lines[0])
	assert.Contains(t, lines, "- region_or_state: TX")
	assert.Contains(t, lines, "- end_date: 2025-11-02")
	assert.Contains(t, lines, "Target radius: 7.5 mile radius")
	assert.Contains(t, got, "Strongly prioritize official local/community sources")
	assert.Equal(t, "Timezone for normalization: America/Chicago", lines[len(lines)-1])

	a.RadiusMiles = 0
	a.PreferLocal = false
	got = UserPrompt(a, GenericSearchTool)
	assert.Contains(t, got, "Target radius: the immediate local area")
	assert.Contains(t, got, "Use any trustworthy sources you can confirm")
	assert.NotContains(t, got, "Strongly prioritize")
}
