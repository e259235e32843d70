package chunk

import (
	"context"
	"errors"
	"fmt"

	"github.com/OCharnyshevich/voxelworld/internal/world/block"
	"github.com/OCharnyshevich/voxelworld/internal/world/edits"
	"github.com/OCharnyshevich/voxelworld/internal/world/gen"
	"github.com/OCharnyshevich/voxelworld/pkg/world/coord"
)

// ErrNotUnloaded is returned when generation is requested for a chunk that is
// already generating, loaded or disposed.
var ErrNotUnloaded = errors.New("chunk is not unloaded")

const treeSalt = 600

// Generator runs the generation pipeline. It is immutable and may generate
// any number of chunks concurrently.
type Generator struct {
	seed    int64
	size    Size
	params  gen.Params
	catalog *block.Catalog
	noise   *gen.Samplers
	store   edits.Store

	resources []block.Type
	dirt      block.ID
	grass     block.ID
	tree      block.ID
	leaves    block.ID
	cloud     block.ID
}

// NewGenerator prepares a pipeline for one world. The catalog must define the
// grass, dirt, tree, leaves and cloud blocks. params are validated on each
// Generate call so a bad configuration fails the chunk, not the world.
func NewGenerator(seed int64, size Size, params gen.Params, catalog *block.Catalog, store edits.Store) (*Generator, error) {
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("invalid chunk size %dx%d", size.Width, size.Height)
	}
	g := &Generator{
		seed:      seed,
		size:      size,
		params:    params,
		catalog:   catalog,
		store:     store,
		resources: catalog.Resources(),
	}
	g.noise = gen.NewSamplers(seed, len(g.resources))

	for _, b := range []struct {
		name string
		dst  *block.ID
	}{
		{block.NameDirt, &g.dirt},
		{block.NameGrass, &g.grass},
		{block.NameTree, &g.tree},
		{block.NameLeaves, &g.leaves},
		{block.NameCloud, &g.cloud},
	} {
		id, err := catalog.Lookup(b.name)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		*b.dst = id
	}
	return g, nil
}

// Seed returns the world seed the generator was built for.
func (g *Generator) Seed() int64 { return g.seed }

// Size returns the chunk size the generator produces.
func (g *Generator) Size() Size { return g.size }

// Catalog returns the block catalog.
func (g *Generator) Catalog() *block.Catalog { return g.catalog }

// HeightAt returns the terrain surface height of world column (x, z).
func (g *Generator) HeightAt(x, z int) int {
	return g.params.Terrain.Height(g.noise.Terrain, x, z, g.size.Height)
}

// Generate runs the pipeline on an unloaded chunk and moves it to Loaded. On
// failure the chunk is returned to Unloaded with no grid. ctx is checked
// between stages.
func (g *Generator) Generate(ctx context.Context, c *Chunk) error {
	if !c.state.CAS(int32(Unloaded), int32(Generating)) {
		return fmt.Errorf("generate chunk %v: %w (%s)", c.Pos, ErrNotUnloaded, c.State())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := g.run(ctx, c); err != nil {
		c.reset()
		c.state.CAS(int32(Generating), int32(Unloaded))
		return fmt.Errorf("generate chunk %v: %w", c.Pos, err)
	}
	if !c.state.CAS(int32(Generating), int32(Loaded)) {
		c.reset()
		return fmt.Errorf("generate chunk %v: %w", c.Pos, ErrDisposed)
	}
	return nil
}

func (g *Generator) run(ctx context.Context, c *Chunk) error {
	if c.size != g.size {
		return fmt.Errorf("chunk size %+v does not match generator size %+v", c.size, g.size)
	}
	if err := g.params.Validate(); err != nil {
		return err
	}

	rng := gen.NewChunkRNG(g.seed, c.Pos.X, c.Pos.Z, treeSalt)
	stages := []struct {
		name string
		run  func(*Chunk, *gen.RNG) error
	}{
		{"initialize", g.initialize},
		{"resources", g.generateResources},
		{"terrain", g.generateTerrain},
		{"trees", g.generateTrees},
		{"clouds", g.generateClouds},
		{"edits", g.replayEdits},
		{"slots", func(c *Chunk, _ *gen.RNG) error { c.assignSlots(); return nil }},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("before %s: %w", s.name, err)
		}
		if err := s.run(c, rng); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (g *Generator) initialize(c *Chunk, _ *gen.RNG) error {
	c.cells = make([]Cell, g.size.Volume())
	for i := range c.cells {
		c.cells[i] = Cell{ID: block.Empty, Slot: NoSlot}
	}
	c.slots = make(map[block.ID]*SlotTable)
	c.heights = make([]int, g.size.Width*g.size.Width)
	return nil
}

// generateResources fills voxels whose 3D noise exceeds each resource's
// scarcity. Later resources overwrite earlier ones.
func (g *Generator) generateResources(c *Chunk, _ *gen.RNG) error {
	ox, _, oz := c.Origin()
	for i, res := range g.resources {
		n := g.noise.Resources[i]
		s := res.Resource.Scale
		for x := 0; x < g.size.Width; x++ {
			for y := 0; y < g.size.Height; y++ {
				for z := 0; z < g.size.Width; z++ {
					v := n.Noise3D(float64(ox+x)/s.X, float64(y)/s.Y, float64(oz+z)/s.Z)
					if v > res.Resource.Scarcity {
						c.setID(coord.Local{X: x, Y: y, Z: z}, res.ID)
					}
				}
			}
		}
	}
	return nil
}

// generateTerrain fills each column with dirt up to its surface, caps it with
// grass and clears everything above. Resources below the surface survive.
func (g *Generator) generateTerrain(c *Chunk, _ *gen.RNG) error {
	ox, _, oz := c.Origin()
	for x := 0; x < g.size.Width; x++ {
		for z := 0; z < g.size.Width; z++ {
			h := g.HeightAt(ox+x, oz+z)
			c.heights[z*g.size.Width+x] = h

			for y := 0; y < g.size.Height; y++ {
				l := coord.Local{X: x, Y: y, Z: z}
				switch {
				case y < h:
					if c.id(l) == block.Empty {
						c.setID(l, g.dirt)
					}
				case y == h:
					c.setID(l, g.grass)
				default:
					c.setID(l, block.Empty)
				}
			}
		}
	}
	return nil
}

// generateTrees rolls once per column inside the canopy margin and grows a
// tree on the column's lowest grass block.
func (g *Generator) generateTrees(c *Chunk, rng *gen.RNG) error {
	t := g.params.Trees
	margin := t.Canopy.MaxRadius
	for x := margin; x < g.size.Width-margin; x++ {
		for z := margin; z < g.size.Width-margin; z++ {
			if rng.Float64() < t.Frequency {
				g.growTree(c, x, z, rng)
			}
		}
	}
	return nil
}

func (g *Generator) growTree(c *Chunk, x, z int, rng *gen.RNG) {
	t := g.params.Trees
	for y := 0; y < g.size.Height; y++ {
		if c.id(coord.Local{X: x, Y: y, Z: z}) != g.grass {
			continue
		}
		h := rng.IntRange(t.Trunk.MinHeight, t.Trunk.MaxHeight)
		for ty := y; ty <= y+h; ty++ {
			c.setID(coord.Local{X: x, Y: ty, Z: z}, g.tree)
		}
		g.growCanopy(c, coord.Local{X: x, Y: y + h, Z: z}, rng)
		return
	}
}

// growCanopy scatters leaves inside a sphere around centre. One random value
// is drawn per offset of the bounding cube whether or not it is used.
func (g *Generator) growCanopy(c *Chunk, centre coord.Local, rng *gen.RNG) {
	cp := g.params.Trees.Canopy
	r := rng.IntRange(cp.MinRadius, cp.MaxRadius)
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				n := rng.Float64()
				if dx*dx+dy*dy+dz*dz >= r*r {
					continue
				}
				l := centre.Add(dx, dy, dz)
				if !c.inBounds(l) || c.id(l) != block.Empty {
					continue
				}
				if n < cp.Density {
					c.setID(l, g.leaves)
				}
			}
		}
	}
}

// generateClouds sets the top layer to cloud where the remapped noise is
// below the configured density.
func (g *Generator) generateClouds(c *Chunk, _ *gen.RNG) error {
	cl := g.params.Clouds
	ox, _, oz := c.Origin()
	top := g.size.Height - 1
	for x := 0; x < g.size.Width; x++ {
		for z := 0; z < g.size.Width; z++ {
			v := (g.noise.Clouds.Noise2D(float64(ox+x)/cl.Scale, float64(oz+z)/cl.Scale) + 1) * 0.5
			if v < cl.Density {
				c.setID(coord.Local{X: x, Y: top, Z: z}, g.cloud)
			}
		}
	}
	return nil
}

// replayEdits overwrites generated blocks with recorded player edits.
func (g *Generator) replayEdits(c *Chunk, _ *gen.RNG) error {
	m, err := g.store.Chunk(c.Pos.X, c.Pos.Z)
	if err != nil {
		return err
	}
	for l, id := range m {
		c.setID(l, id)
	}
	return nil
}
