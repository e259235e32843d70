// Package chunk holds a fixed-size column of the voxel grid together with the
// render-slot tables that track which of its blocks are visible.
package chunk

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/OCharnyshevich/voxelworld/internal/world/block"
	"github.com/OCharnyshevich/voxelworld/internal/world/edits"
	"github.com/OCharnyshevich/voxelworld/pkg/world/coord"
)

// NoSlot marks a cell that holds no render slot.
const NoSlot = -1

// ErrDisposed is returned when a chunk is disposed while it is being generated.
var ErrDisposed = errors.New("chunk disposed")

// State is a chunk's position in its lifecycle.
type State int32

const (
	Unloaded State = iota
	Generating
	Loaded
	Disposed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Generating:
		return "generating"
	case Loaded:
		return "loaded"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Size is the block extent of every chunk in a world.
type Size struct {
	Width  int // X and Z
	Height int // Y
}

// Volume returns the number of blocks in a chunk.
func (s Size) Volume() int { return s.Width * s.Height * s.Width }

// Cell is one block of the grid.
type Cell struct {
	ID   block.ID
	Slot int // NoSlot unless the block is non-empty and exposed
}

// HasSlot reports whether the cell currently holds a render slot.
func (c Cell) HasSlot() bool { return c.Slot != NoSlot }

// Chunk owns the grid for one chunk coordinate. Generation and edits hold
// the chunk's mutex, so they never interleave.
type Chunk struct {
	Pos coord.ChunkPos

	size  Size
	store edits.Store
	state atomic.Int32

	mu      sync.Mutex
	cells   []Cell
	slots   map[block.ID]*SlotTable
	heights []int
}

// New creates an unloaded chunk. Edits applied to it are recorded in store.
func New(pos coord.ChunkPos, size Size, store edits.Store) *Chunk {
	return &Chunk{Pos: pos, size: size, store: store}
}

// State returns the current lifecycle state.
func (c *Chunk) State() State { return State(c.state.Load()) }

// Size returns the chunk's block extent.
func (c *Chunk) Size() Size { return c.size }

// Origin returns the world position of local (0, 0, 0).
func (c *Chunk) Origin() (x, y, z int) { return c.Pos.Origin(c.size.Width) }

func (c *Chunk) inBounds(l coord.Local) bool {
	return l.X >= 0 && l.X < c.size.Width &&
		l.Y >= 0 && l.Y < c.size.Height &&
		l.Z >= 0 && l.Z < c.size.Width
}

func (c *Chunk) index(l coord.Local) int {
	return (l.Y*c.size.Width+l.Z)*c.size.Width + l.X
}

// cell returns the cell at l, or nil if l lies outside the grid.
func (c *Chunk) cell(l coord.Local) *Cell {
	if c.cells == nil || !c.inBounds(l) {
		return nil
	}
	return &c.cells[c.index(l)]
}

// id returns the block id at l. Positions outside the grid are empty.
func (c *Chunk) id(l coord.Local) block.ID {
	if cell := c.cell(l); cell != nil {
		return cell.ID
	}
	return block.Empty
}

func (c *Chunk) setID(l coord.Local, id block.ID) {
	if cell := c.cell(l); cell != nil {
		cell.ID = id
	}
}

// reset drops the grid and all slot tables.
func (c *Chunk) reset() {
	c.cells = nil
	c.slots = nil
	c.heights = nil
}

// Block returns the cell at l. It reports false when the chunk is not loaded
// or l lies outside the grid.
func (c *Chunk) Block(l coord.Local) (Cell, bool) {
	if c.State() != Loaded {
		return Cell{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != Loaded {
		return Cell{}, false
	}
	cell := c.cell(l)
	if cell == nil {
		return Cell{}, false
	}
	return *cell, true
}

// SurfaceHeight returns the terrain height computed for column (x, z) during
// generation, or -1 if the chunk is not loaded.
func (c *Chunk) SurfaceHeight(x, z int) int {
	if c.State() != Loaded {
		return -1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != Loaded || x < 0 || x >= c.size.Width || z < 0 || z >= c.size.Width {
		return -1
	}
	return c.heights[z*c.size.Width+x]
}

// IsObscured reports whether the block at l is hidden on all six sides. It
// is false for a chunk that is not loaded.
func (c *Chunk) IsObscured(l coord.Local) bool {
	if c.State() != Loaded {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.State() == Loaded && c.obscured(l)
}

// Dispose releases the grid and slots. A chunk still generating releases
// them itself when its pipeline finishes.
func (c *Chunk) Dispose() {
	if State(c.state.Swap(int32(Disposed))) == Generating {
		return
	}
	c.mu.Lock()
	c.reset()
	c.mu.Unlock()
}

// AddBlock places id at l if the chunk is loaded and l is empty. It records
// the edit, gives the block a slot when it is exposed and hides neighbours
// it fully encloses. It reports whether the grid changed.
func (c *Chunk) AddBlock(l coord.Local, id block.ID) (bool, error) {
	if id == block.Empty || c.State() != Loaded {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != Loaded {
		return false, nil
	}
	cell := c.cell(l)
	if cell == nil || cell.ID != block.Empty {
		return false, nil
	}
	if err := c.store.Set(c.editKey(l), id); err != nil {
		return false, fmt.Errorf("record edit: %w", err)
	}

	cell.ID = id
	if !c.obscured(l) {
		c.addBlockInstance(l)
	}
	for _, d := range neighbours {
		n := l.Add(d[0], d[1], d[2])
		if nc := c.cell(n); nc != nil && nc.ID != block.Empty && nc.HasSlot() && c.obscured(n) {
			c.deleteBlockInstance(n)
		}
	}
	return true, nil
}

// RemoveBlock clears the block at l if the chunk is loaded and l is not
// empty. It records an empty edit, releases the block's slot and reveals
// neighbours that become exposed. It reports whether the grid changed.
func (c *Chunk) RemoveBlock(l coord.Local) (bool, error) {
	if c.State() != Loaded {
		return false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != Loaded {
		return false, nil
	}
	cell := c.cell(l)
	if cell == nil || cell.ID == block.Empty {
		return false, nil
	}
	if err := c.store.Set(c.editKey(l), block.Empty); err != nil {
		return false, fmt.Errorf("record edit: %w", err)
	}

	c.deleteBlockInstance(l)
	cell.ID = block.Empty
	for _, d := range neighbours {
		c.addBlockInstance(l.Add(d[0], d[1], d[2]))
	}
	return true, nil
}

func (c *Chunk) editKey(l coord.Local) edits.Key {
	return edits.Key{Chunk: c.Pos, Local: l}
}
