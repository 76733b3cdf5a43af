package services

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed quote_macros.yaml
var defaultQuoteMacros []byte

type QuoteMacro struct {
	ID        string `yaml:"id" json:"id"`
	Title     string `yaml:"title" json:"title"`
	Text      string `yaml:"text" json:"text"`
	Source    string `yaml:"source" json:"source,omitempty"`
	Character string `yaml:"character" json:"character,omitempty"`
}

type QuoteMacroCatalog struct {
	byID  map[string]QuoteMacro
	order []string
}

// LoadQuoteMacros parses the embedded catalog, or the YAML file at path
// when path is set.
func LoadQuoteMacros(path string) (*QuoteMacroCatalog, error) {
	raw := defaultQuoteMacros
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read quote macros: %w", err)
		}
		raw = b
	}
	return ParseQuoteMacros(raw)
}

func ParseQuoteMacros(raw []byte) (*QuoteMacroCatalog, error) {
	var doc struct {
		Macros []QuoteMacro `yaml:"macros"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse quote macros: %w", err)
	}
	c := &QuoteMacroCatalog{byID: make(map[string]QuoteMacro, len(doc.Macros))}
	for _, m := range doc.Macros {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" || strings.TrimSpace(m.Text) == "" {
			return nil, fmt.Errorf("quote macro %q: id and text are required", m.ID)
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate quote macro %q", m.ID)
		}
		c.byID[m.ID] = m
		c.order = append(c.order, m.ID)
	}
	sort.Strings(c.order)
	return c, nil
}

func (c *QuoteMacroCatalog) Get(id string) (QuoteMacro, bool) {
	if c == nil {
		return QuoteMacro{}, false
	}
	m, ok := c.byID[strings.TrimSpace(id)]
	return m, ok
}

func (c *QuoteMacroCatalog) List() []QuoteMacro {
	if c == nil {
		return nil
	}
	out := make([]QuoteMacro, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
