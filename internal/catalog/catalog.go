// Package catalog describes the vendor categories researched per
// construction phase, with optional specializations for each category.
package catalog

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/vendor-research/internal/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the set of phases and their vendor categories.
type Catalog struct {
	Phases []Phase `yaml:"phases" json:"phases"`
}

// Phase is a construction phase, e.g. "Pre-Construction Planning & Design".
type Phase struct {
	Name   string  `yaml:"name" json:"name"`
	Groups []Group `yaml:"groups" json:"groups"`
}

// Group collects related categories within a phase.
type Group struct {
	Key         string     `yaml:"key" json:"key"`
	Title       string     `yaml:"title" json:"title,omitempty"`
	Description string     `yaml:"description" json:"description,omitempty"`
	Categories  []Category `yaml:"categories" json:"categories"`
}

// Category is one researchable vendor category.
type Category struct {
	Key             string           `yaml:"key" json:"key"`
	Description     string           `yaml:"description" json:"description,omitempty"`
	TypicalCost     string           `yaml:"typical_cost" json:"typical_cost,omitempty"`
	Items           []string         `yaml:"items" json:"items,omitempty"`
	Specializations []Specialization `yaml:"specializations" json:"specializations,omitempty"`
}

// Specialization narrows a category search.
type Specialization struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or returns the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "catalog: parse")
	}

	seen := make(map[string]bool)
	for _, p := range c.Phases {
		if p.Name == "" {
			return nil, eris.New("catalog: phase without name")
		}
		for _, g := range p.Groups {
			for _, cat := range g.Categories {
				if cat.Key == "" {
					return nil, eris.Errorf("catalog: category without key in %s", g.Key)
				}
				id := p.Name + "/" + cat.Key
				if seen[id] {
					return nil, eris.Errorf("catalog: duplicate category %s in phase %q", cat.Key, p.Name)
				}
				seen[id] = true
			}
		}
	}
	return &c, nil
}

// Phase returns the phase named name (case-insensitive).
func (c *Catalog) Phase(name string) (*Phase, bool) {
	for i := range c.Phases {
		if strings.EqualFold(c.Phases[i].Name, name) {
			return &c.Phases[i], true
		}
	}
	return nil, false
}

// Categories returns every category of the phase in catalog order.
func (p *Phase) Categories() []Category {
	var out []Category
	for _, g := range p.Groups {
		out = append(out, g.Categories...)
	}
	return out
}

// Find looks up a category by key or display name within a phase.
func (c *Catalog) Find(phase, keyOrName string) (Category, bool) {
	p, ok := c.Phase(phase)
	if !ok {
		return Category{}, false
	}
	want := strings.ToLower(strings.TrimSpace(keyOrName))
	for _, cat := range p.Categories() {
		if cat.Key == want || strings.ToLower(cat.Name()) == want {
			return cat, true
		}
	}
	return Category{}, false
}

// Name is the display name derived from the key: "land_surveyors" becomes
// "Land Surveyors".
func (c Category) Name() string {
	return cases.Title(language.English).String(strings.ReplaceAll(c.Key, "_", " "))
}

// Specialization resolves a specialization value to its label. Unknown
// values are returned unchanged so free text still reaches the query.
func (c Category) Specialization(value string) string {
	for _, s := range c.Specializations {
		if strings.EqualFold(s.Value, value) {
			return s.Label
		}
	}
	return value
}

// VendorCategory converts c into the persisted shape for phase.
func (c Category) VendorCategory(phase string) model.VendorCategory {
	return model.VendorCategory{
		Name:        c.Name(),
		Category:    c.Key,
		Phase:       phase,
		Description: c.Description,
		TypicalCost: c.TypicalCost,
	}
}
