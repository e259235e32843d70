package chunk

import (
	"fmt"
	"sort"

	"github.com/OCharnyshevich/voxelworld/internal/world/block"
	"github.com/OCharnyshevich/voxelworld/pkg/world/coord"
)

// neighbours are the six axis-aligned offsets.
var neighbours = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// SlotTable is the dense list of exposed positions of one block type. Slots
// [0, Len()) are always occupied. Indices move on removal, so callers read a
// block's slot from its Cell rather than caching it.
type SlotTable struct {
	positions []coord.Local
}

// Len returns the number of occupied slots.
func (t *SlotTable) Len() int { return len(t.positions) }

// At returns the position stored in slot i.
func (t *SlotTable) At(i int) coord.Local { return t.positions[i] }

// obscured reports whether all six neighbours of l are non-empty. Neighbours
// outside the grid count as empty, so edge blocks are always exposed.
func (c *Chunk) obscured(l coord.Local) bool {
	for _, d := range neighbours {
		if c.id(l.Add(d[0], d[1], d[2])) == block.Empty {
			return false
		}
	}
	return true
}

func (c *Chunk) table(id block.ID) *SlotTable {
	if c.slots == nil {
		c.slots = make(map[block.ID]*SlotTable)
	}
	t, ok := c.slots[id]
	if !ok {
		t = &SlotTable{}
		c.slots[id] = t
	}
	return t
}

// addBlockInstance appends l to its type's table. No-op for empty blocks and
// blocks that already hold a slot.
func (c *Chunk) addBlockInstance(l coord.Local) {
	cell := c.cell(l)
	if cell == nil || cell.ID == block.Empty || cell.HasSlot() {
		return
	}
	t := c.table(cell.ID)
	cell.Slot = len(t.positions)
	t.positions = append(t.positions, l)
}

// deleteBlockInstance releases l's slot by moving the table's last entry into
// it. No-op for empty blocks and blocks without a slot.
func (c *Chunk) deleteBlockInstance(l coord.Local) {
	cell := c.cell(l)
	if cell == nil || cell.ID == block.Empty || !cell.HasSlot() {
		return
	}
	t := c.slots[cell.ID]
	i := cell.Slot
	if t == nil || i < 0 || i >= len(t.positions) || t.positions[i] != l {
		panic(fmt.Sprintf("chunk %v: slot table for block %d corrupt at %v (slot %d)", c.Pos, cell.ID, l, i))
	}

	last := len(t.positions) - 1
	if i != last {
		moved := t.positions[last]
		t.positions[i] = moved
		c.cell(moved).Slot = i
	}
	t.positions = t.positions[:last]
	cell.Slot = NoSlot
}

// assignSlots gives every exposed, non-empty block a slot.
func (c *Chunk) assignSlots() {
	for y := 0; y < c.size.Height; y++ {
		for z := 0; z < c.size.Width; z++ {
			for x := 0; x < c.size.Width; x++ {
				l := coord.Local{X: x, Y: y, Z: z}
				if c.id(l) != block.Empty && !c.obscured(l) {
					c.addBlockInstance(l)
				}
			}
		}
	}
}

// SlotCount returns the number of visible blocks of type id.
func (c *Chunk) SlotCount(id block.ID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.slots[id]; ok {
		return t.Len()
	}
	return 0
}

// BlockTypes returns the ids that currently have at least one visible block,
// in ascending order.
func (c *Chunk) BlockTypes() []block.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]block.ID, 0, len(c.slots))
	for id, t := range c.slots {
		if t.Len() > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Instances calls fn with each slot and its local position for block type id,
// in slot order, until fn returns false. fn must not call back into the chunk.
func (c *Chunk) Instances(id block.ID, fn func(slot int, pos coord.Local) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.slots[id]
	if !ok {
		return
	}
	for i, l := range t.positions {
		if !fn(i, l) {
			return
		}
	}
}
