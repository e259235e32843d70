package gen

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams is returned when generation parameters cannot produce a chunk.
var ErrInvalidParams = errors.New("invalid generation parameters")

// Params configures the procedural stages of chunk generation.
type Params struct {
	Terrain TerrainParams `json:"terrain" yaml:"terrain" toml:"terrain"`
	Trees   TreeParams    `json:"trees" yaml:"trees" toml:"trees"`
	Clouds  CloudParams   `json:"clouds" yaml:"clouds" toml:"clouds"`
}

// TerrainParams maps 2D noise to a column height:
// height = floor(gridHeight * (Offset + Magnitude*noise)).
type TerrainParams struct {
	Scale     float64 `json:"scale" yaml:"scale" toml:"scale"`
	Magnitude float64 `json:"magnitude" yaml:"magnitude" toml:"magnitude"`
	Offset    float64 `json:"offset" yaml:"offset" toml:"offset"`
}

// TreeParams controls trunk and canopy placement.
type TreeParams struct {
	Frequency float64      `json:"frequency" yaml:"frequency" toml:"frequency"`
	Trunk     TrunkParams  `json:"trunk" yaml:"trunk" toml:"trunk"`
	Canopy    CanopyParams `json:"canopy" yaml:"canopy" toml:"canopy"`
}

// TrunkParams bounds the trunk height above the grass block, inclusive.
type TrunkParams struct {
	MinHeight int `json:"min_height" yaml:"min_height" toml:"min_height"`
	MaxHeight int `json:"max_height" yaml:"max_height" toml:"max_height"`
}

// CanopyParams bounds the canopy radius. Density is the chance a voxel
// inside the sphere becomes leaves.
type CanopyParams struct {
	MinRadius int     `json:"min_radius" yaml:"min_radius" toml:"min_radius"`
	MaxRadius int     `json:"max_radius" yaml:"max_radius" toml:"max_radius"`
	Density   float64 `json:"density" yaml:"density" toml:"density"`
}

// CloudParams places clouds where the remapped noise value is below Density.
type CloudParams struct {
	Scale   float64 `json:"scale" yaml:"scale" toml:"scale"`
	Density float64 `json:"density" yaml:"density" toml:"density"`
}

// DefaultParams returns the stock generation settings.
func DefaultParams() Params {
	return Params{
		Terrain: TerrainParams{Scale: 30, Magnitude: 0.2, Offset: 0.2},
		Trees: TreeParams{
			Frequency: 0.01,
			Trunk:     TrunkParams{MinHeight: 4, MaxHeight: 7},
			Canopy:    CanopyParams{MinRadius: 2, MaxRadius: 4, Density: 0.5},
		},
		Clouds: CloudParams{Scale: 30, Density: 0.3},
	}
}

// Validate reports every parameter that would make generation ill-defined.
// The returned error wraps ErrInvalidParams.
func (p Params) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(finitePositive(p.Terrain.Scale), "terrain scale %v must be positive", p.Terrain.Scale)
	check(!math.IsNaN(p.Terrain.Magnitude) && !math.IsInf(p.Terrain.Magnitude, 0), "terrain magnitude %v must be finite", p.Terrain.Magnitude)
	check(!math.IsNaN(p.Terrain.Offset) && !math.IsInf(p.Terrain.Offset, 0), "terrain offset %v must be finite", p.Terrain.Offset)

	check(probability(p.Trees.Frequency), "tree frequency %v must be in [0,1]", p.Trees.Frequency)
	check(p.Trees.Trunk.MinHeight >= 0, "trunk min height %d must not be negative", p.Trees.Trunk.MinHeight)
	check(p.Trees.Trunk.MinHeight <= p.Trees.Trunk.MaxHeight, "trunk min height %d exceeds max height %d", p.Trees.Trunk.MinHeight, p.Trees.Trunk.MaxHeight)
	check(p.Trees.Canopy.MinRadius >= 0, "canopy min radius %d must not be negative", p.Trees.Canopy.MinRadius)
	check(p.Trees.Canopy.MinRadius <= p.Trees.Canopy.MaxRadius, "canopy min radius %d exceeds max radius %d", p.Trees.Canopy.MinRadius, p.Trees.Canopy.MaxRadius)
	check(probability(p.Trees.Canopy.Density), "canopy density %v must be in [0,1]", p.Trees.Canopy.Density)

	check(finitePositive(p.Clouds.Scale), "cloud scale %v must be positive", p.Clouds.Scale)
	check(probability(p.Clouds.Density), "cloud density %v must be in [0,1]", p.Clouds.Density)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidParams, errors.Join(errs...))
}

// Height returns the terrain surface height of the world column (wx, wz) for a
// grid of the given height, clamped to [0, gridHeight-1].
func (t TerrainParams) Height(n *Noise, wx, wz, gridHeight int) int {
	v := n.Noise2D(float64(wx)/t.Scale, float64(wz)/t.Scale)
	h := int(math.Floor(float64(gridHeight) * (t.Offset + t.Magnitude*v)))
	return max(0, min(h, gridHeight-1))
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func probability(v float64) bool {
	return v >= 0 && v <= 1
}
