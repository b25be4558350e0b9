package tier

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Catalog is the immutable set of purchasable tiers.
type Catalog struct {
	byID  map[ID]Definition
	order []ID
}

// NewCatalog validates the given definitions and builds a catalog.
func NewCatalog(defs []Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog requires at least one tier")
	}

	byID := make(map[ID]Definition, len(defs))
	order := make([]ID, 0, len(defs))
	for _, def := range defs {
		if Rank(def.ID) == 0 {
			return nil, fmt.Errorf("unknown tier id %q", def.ID)
		}
		if _, exists := byID[def.ID]; exists {
			return nil, fmt.Errorf("duplicate tier id %q", def.ID)
		}
		if def.PriceMinorUnits < 0 {
			return nil, fmt.Errorf("tier %s: price must not be negative", def.ID)
		}
		if def.Currency == "" {
			def.Currency = "usd"
		}
		byID[def.ID] = def
		order = append(order, def.ID)
	}
	return &Catalog{byID: byID, order: order}, nil
}

// Get returns the definition for id.
func (c *Catalog) Get(id ID) (Definition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// All returns the definitions in catalog order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

type catalogFile struct {
	Tiers []Definition `yaml:"tiers"`
}

// LoadCatalog reads tier definitions from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tier catalog: %w", err)
	}
	return NewCatalog(file.Tiers)
}

// LoadCatalogOrDefault loads the catalog from path, falling back to the
// compiled-in defaults when the file is missing.
func LoadCatalogOrDefault(path string) *Catalog {
	if path == "" {
		path = filepath.Join("config", "tiers.yaml")
	}
	catalog, err := LoadCatalog(path)
	if err != nil {
		return DefaultCatalog()
	}
	return catalog
}

// DefaultCatalog returns the built-in tier definitions.
func DefaultCatalog() *Catalog {
	catalog, err := NewCatalog([]Definition{
		{
			ID:              Regular,
			DisplayName:     "Regular Member",
			PriceMinorUnits: 499,
			Currency:        "usd",
			Features: []string{
				"Your name on the leaderboard",
				"A number proving you paid",
			},
		},
		{
			ID:              Elite,
			DisplayName:     "Elite Member",
			PriceMinorUnits: 9999,
			Currency:        "usd",
			Features: []string{
				"Everything in Regular",
				"A shinier badge",
				"Priority bragging rights",
			},
		},
		{
			ID:              God,
			DisplayName:     "God Member",
			PriceMinorUnits: 99999,
			Currency:        "usd",
			Features: []string{
				"Everything in Elite",
				"Golden glow on every screen",
				"Our eternal gratitude",
			},
		},
	})
	if err != nil {
		// Defaults are compile-time constants; this cannot happen.
		panic(err)
	}
	return catalog
}
