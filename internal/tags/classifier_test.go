package tags

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Vocabulary(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{
		"Concert", "Festival", "Theatre", "Market", "Comedy", "Sports", "Outdoor",
		"Cultural", "Charity", "Drinks", "Networking", "Wellness", "Lifestyle",
	}, c.Vocabulary())
	assert.True(t, c.Contains("Networking"))
	assert.False(t, c.Contains("Netwroking"))
}

func TestSelect(t *testing.T) {
	c := Default()
	tests := []struct {
		name     string
		title    string
		location string
		want     []string
	}{
		{"tie breaks alphabetically", "bazaar fundraiser", "", []string{"Charity", "Market"}},
		{"single tag", "Sunday Farmers Market", "Union Square New York NY", []string{"Market"}},
		{"two tags ranked by score", "Startup founders mixer", "", []string{"Networking", "Cultural"}},
		{"outdoor wellness", "Morning yoga in the park", "", []string{"Outdoor", "Wellness"}},
		{"location text counts", "Stand-up comedy night", "The Cellar Austin TX", []string{"Comedy"}},
		{"case insensitive", "CHARITY GALA BENEFIT CONCERT", "", []string{"Charity", "Concert"}},
		{"substring match", "Quarterly board review", "", []string{"Cultural"}},
		{"empty", "", "", []string{}},
		{"no hits", "zzz", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Select(tt.title, tt.location))
		})
	}
}

func TestSelect_AtMostThree(t *testing.T) {
	c := Default()
	got := c.Select("charity concert festival market comedy sports hike yoga wine mixer", "")
	assert.Len(t, got, MaxSelected)
	for _, tag := range got {
		assert.True(t, c.Contains(tag))
	}
}

func TestSelect_Deterministic(t *testing.T) {
	c := Default()
	first := c.Select("Night market and live music by the river", "Riverside Park")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.Select("Night market and live music by the river", "Riverside Park"))
	}
}

func TestClassifier_ConcurrentUse(t *testing.T) {
	c := Default()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Contains(t, c.Select("Sunday FARMERS MARKET", "Zilker Park"), "Market")
				assert.Equal(t, []string{"Networking"}, c.Canonicalize("NETWROKING"))
			}
		}()
	}
	wg.Wait()
}

func TestCanonicalize(t *testing.T) {
	c := Default()
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{"comma string with alias", "concert, NETWROKING,foo, Concert , networking", []string{"Concert", "Networking"}},
		{"string slice", []string{"Theatre", "theater", "Drinks"}, []string{"Theatre", "Drinks"}},
		{"any slice skips non-strings", []any{"wellness", 7, "Lifestyle"}, []string{"Wellness", "Lifestyle"}},
		{"nil", nil, []string{}},
		{"unsupported type", 42, []string{}},
		{"blank tokens", " , ,", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Canonicalize(tt.input))
		})
	}
}

func TestIntersects(t *testing.T) {
	c := Default()
	assert.True(t, c.Intersects([]string{"Concert", "Drinks"}, "drinks"))
	assert.True(t, c.Intersects([]string{"netwroking"}, []string{"Networking"}))
	assert.False(t, c.Intersects([]string{"Concert"}, "Sports"))
	assert.False(t, c.Intersects([]string{"Concert"}, ""))
}

func TestNew_RejectsUnknownTargets(t *testing.T) {
	_, err := New(&Table{Vocabulary: []string{"A"}, Aliases: map[string]string{"b": "B"}})
	assert.Error(t, err)

	_, err = New(&Table{Vocabulary: []string{"A"}, Keywords: map[string][]string{"B": {"x"}}})
	assert.Error(t, err)

	_, err = New(&Table{})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Len(t, c.Vocabulary(), 13)

	path := filepath.Join(t.TempDir(), "tags.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vocabulary: [Food, Music]
aliases:
  musik: Music
keywords:
  Food: [taco, pizza]
  Music: [jazz]
`), 0o644))

	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "Music"}, c.Select("Taco and jazz night", ""))
	assert.Equal(t, []string{"Music"}, c.Canonicalize("MUSIK"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
