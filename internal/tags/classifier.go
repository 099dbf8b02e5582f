// Package tags maps free text onto the fixed event tag vocabulary.
package tags

import (
	_ "embed"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// MaxSelected is the number of tags Select returns at most.
const MaxSelected = 3

//go:embed keywords.yaml
var defaultTable []byte

// Table is the on-disk shape of the keyword table.
type Table struct {
	Vocabulary []string            `yaml:"vocabulary"`
	Aliases    map[string]string   `yaml:"aliases"`
	Keywords   map[string][]string `yaml:"keywords"`
}

// Classifier scores text against per-tag keyword lists and canonicalizes
// externally supplied tag strings. It is safe for concurrent use.
type Classifier struct {
	vocab    []string
	keywords map[string][]string
	byLower  map[string]string

	foldMu sync.Mutex
	fold   cases.Caser
}

// ParseTable decodes a YAML keyword table.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "tags: parse keyword table")
	}
	return &t, nil
}

// New builds a Classifier from t. Aliases and keyword lists must only refer
// to vocabulary tags.
func New(t *Table) (*Classifier, error) {
	if t == nil || len(t.Vocabulary) == 0 {
		return nil, eris.New("tags: empty vocabulary")
	}

	c := &Classifier{
		vocab:    append([]string(nil), t.Vocabulary...),
		keywords: make(map[string][]string, len(t.Vocabulary)),
		byLower:  make(map[string]string, len(t.Vocabulary)+len(t.Aliases)),
		fold:     cases.Lower(language.Und),
	}
	for _, tag := range c.vocab {
		c.byLower[c.lower(tag)] = tag
	}
	for alias, target := range t.Aliases {
		canon, ok := c.byLower[c.lower(target)]
		if !ok {
			return nil, eris.Errorf("tags: alias %q targets unknown tag %q", alias, target)
		}
		if _, exists := c.byLower[c.lower(alias)]; !exists {
			c.byLower[c.lower(alias)] = canon
		}
	}
	for tag, kws := range t.Keywords {
		canon, ok := c.byLower[c.lower(tag)]
		if !ok {
			return nil, eris.Errorf("tags: keywords for unknown tag %q", tag)
		}
		for _, kw := range kws {
			if kw = c.lower(strings.TrimSpace(kw)); kw != "" {
				c.keywords[canon] = append(c.keywords[canon], kw)
			}
		}
	}
	return c, nil
}

// Default returns the Classifier built from the embedded keyword table.
func Default() *Classifier {
	t, err := ParseTable(defaultTable)
	if err != nil {
		panic(err)
	}
	c, err := New(t)
	if err != nil {
		panic(err)
	}
	return c
}

// Load returns the Classifier for path, or the embedded default when path is empty.
func Load(path string) (*Classifier, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tags: read %s", path)
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, err
	}
	return New(t)
}

// Vocabulary returns the tags in canonical order.
func (c *Classifier) Vocabulary() []string {
	return append([]string(nil), c.vocab...)
}

// Contains reports whether tag is a canonical vocabulary member.
func (c *Classifier) Contains(tag string) bool {
	for _, v := range c.vocab {
		if v == tag {
			return true
		}
	}
	return false
}

// Select returns up to MaxSelected tags for title and locationText, ranked by
// keyword hit count descending and then by tag name. Tags with no hits are
// never returned.
func (c *Classifier) Select(title, locationText string) []string {
	text := c.lower(strings.TrimSpace(title + " " + locationText))
	if text == "" {
		return []string{}
	}

	type scored struct {
		tag   string
		score int
	}
	var ranked []scored
	for _, tag := range c.vocab {
		n := 0
		for _, kw := range c.keywords[tag] {
			if strings.Contains(text, kw) {
				n++
			}
		}
		if n > 0 {
			ranked = append(ranked, scored{tag: tag, score: n})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].tag < ranked[j].tag
	})

	out := make([]string, 0, MaxSelected)
	for i := 0; i < len(ranked) && i < MaxSelected; i++ {
		out = append(out, ranked[i].tag)
	}
	return out
}

// Canonicalize maps input onto vocabulary tags. input may be a []string, a
// []any of strings or a comma-separated string; anything else yields an empty
// list. Matching is case-insensitive with alias fallback. Unknown tokens are
// dropped and first-occurrence order is kept.
func (c *Classifier) Canonicalize(input any) []string {
	var parts []string
	switch v := input.(type) {
	case nil:
	case string:
		parts = strings.Split(v, ",")
	case []string:
		parts = v
	case []any:
		for _, p := range v {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
	}

	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		tag, ok := c.byLower[c.lower(p)]
		if !ok {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Intersects reports whether the canonical forms of a and b share a tag.
func (c *Classifier) Intersects(a []string, b any) bool {
	want := c.Canonicalize(b)
	if len(want) == 0 {
		return false
	}
	for _, t := range c.Canonicalize(a) {
		for _, w := range want {
			if t == w {
				return true
			}
		}
	}
	return false
}

// lower folds s with the shared caser, which keeps state between calls.
func (c *Classifier) lower(s string) string {
	c.foldMu.Lock()
	defer c.foldMu.Unlock()
	return c.fold.String(s)
}
