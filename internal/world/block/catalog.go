// Package block defines the registry of block types a world is built from.
package block

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ID identifies a block type. Empty is reserved for air.
type ID uint16

// Empty is the id of air.
const Empty ID = 0

// Names the generator looks up in the catalog.
const (
	NameEmpty  = "empty"
	NameGrass  = "grass"
	NameDirt   = "dirt"
	NameTree   = "tree"
	NameLeaves = "leaves"
	NameCloud  = "cloud"
)

// ErrUnknown is returned for ids or names the catalog does not contain.
var ErrUnknown = errors.New("unknown block type")

// Scale is the per-axis divisor applied to world coordinates before sampling
// resource noise.
type Scale struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// ResourceParams marks a block type as a resource placed by 3D noise.
type ResourceParams struct {
	Scale    Scale   `yaml:"scale"`
	Scarcity float64 `yaml:"scarcity"`
}

// Type is a single catalog entry.
type Type struct {
	ID       ID              `yaml:"id"`
	Name     string          `yaml:"name"`
	Resource *ResourceParams `yaml:"resource,omitempty"`
}

// Catalog is an ordered, immutable set of block types. It is safe to share
// between goroutines.
type Catalog struct {
	types     []Type
	byID      map[ID]int
	byName    map[string]int
	resources []Type
}

// NewCatalog validates types and builds a catalog preserving their order.
// Type 0 must be present and named "empty".
func NewCatalog(types []Type) (*Catalog, error) {
	c := &Catalog{
		types:  make([]Type, 0, len(types)),
		byID:   make(map[ID]int, len(types)),
		byName: make(map[string]int, len(types)),
	}
	for _, t := range types {
		if t.Name == "" {
			return nil, fmt.Errorf("block %d: empty name", t.ID)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("block %q: duplicate id %d", t.Name, t.ID)
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("block %d: duplicate name %q", t.ID, t.Name)
		}
		if t.ID == Empty && t.Name != NameEmpty {
			return nil, fmt.Errorf("block id 0 is reserved for %q, got %q", NameEmpty, t.Name)
		}
		if r := t.Resource; r != nil {
			if t.ID == Empty {
				return nil, fmt.Errorf("block %q: empty block cannot be a resource", t.Name)
			}
			if r.Scale.X <= 0 || r.Scale.Y <= 0 || r.Scale.Z <= 0 {
				return nil, fmt.Errorf("block %q: resource scale %+v must be positive", t.Name, r.Scale)
			}
			res := *r
			t.Resource = &res
			c.resources = append(c.resources, t)
		}
		c.byID[t.ID] = len(c.types)
		c.byName[t.Name] = len(c.types)
		c.types = append(c.types, t)
	}
	if _, ok := c.byID[Empty]; !ok {
		return nil, fmt.Errorf("catalog is missing the %q block (id 0)", NameEmpty)
	}
	return c, nil
}

// Default returns the stock catalog.
func Default() *Catalog {
	c, err := NewCatalog(defaultTypes)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultTypes = []Type{
	{ID: 0, Name: NameEmpty},
	{ID: 1, Name: NameGrass},
	{ID: 2, Name: NameDirt},
	{ID: 3, Name: "stone", Resource: &ResourceParams{Scale: Scale{30, 30, 30}, Scarcity: 0.5}},
	{ID: 4, Name: "coalOre", Resource: &ResourceParams{Scale: Scale{20, 20, 20}, Scarcity: 0.8}},
	{ID: 5, Name: "ironOre", Resource: &ResourceParams{Scale: Scale{60, 60, 60}, Scarcity: 0.9}},
	{ID: 6, Name: NameTree},
	{ID: 7, Name: NameLeaves},
	{ID: 8, Name: "sand"},
	{ID: 9, Name: NameCloud},
	{ID: 10, Name: "flower"},
}

type catalogFile struct {
	Blocks []Type `yaml:"blocks"`
}

// Parse decodes a YAML catalog document of the form
//
//	blocks:
//	  - {id: 0, name: empty}
//	  - {id: 3, name: stone, resource: {scale: {x: 30, y: 30, z: 30}, scarcity: 0.5}}
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(f.Blocks)
}

// Load reads a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Marshal encodes the catalog in the format Parse accepts.
func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(catalogFile{Blocks: c.Types()})
}

// Types returns all block types in declaration order.
func (c *Catalog) Types() []Type {
	out := make([]Type, len(c.types))
	copy(out, c.types)
	return out
}

// Resources returns the resource block types in declaration order.
func (c *Catalog) Resources() []Type {
	out := make([]Type, len(c.resources))
	copy(out, c.resources)
	return out
}

// ByID looks up a block type by id.
func (c *Catalog) ByID(id ID) (Type, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Type{}, false
	}
	return c.types[i], true
}

// ByName looks up a block type by name.
func (c *Catalog) ByName(name string) (Type, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Type{}, false
	}
	return c.types[i], true
}

// Lookup returns the id registered under name.
func (c *Catalog) Lookup(name string) (ID, error) {
	t, ok := c.ByName(name)
	if !ok {
		return Empty, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return t.ID, nil
}

// Len returns the number of block types, including empty.
func (c *Catalog) Len() int { return len(c.types) }
