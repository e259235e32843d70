package storage

import "sort"

// EditsData is the serializable snapshot of an edit store.
type EditsData struct {
	Edits []EditEntry `json:"edits"`
}

// EditEntry is a single recorded edit. Block 0 records a removal.
type EditEntry struct {
	ChunkX int    `json:"cx"`
	ChunkZ int    `json:"cz"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Z      int    `json:"z"`
	Block  uint16 `json:"block"`
}

// sort orders entries by chunk, then y, z, x so snapshots diff cleanly.
func (d *EditsData) sort() {
	sort.Slice(d.Edits, func(i, j int) bool {
		a, b := d.Edits[i], d.Edits[j]
		switch {
		case a.ChunkX != b.ChunkX:
			return a.ChunkX < b.ChunkX
		case a.ChunkZ != b.ChunkZ:
			return a.ChunkZ < b.ChunkZ
		case a.Y != b.Y:
			return a.Y < b.Y
		case a.Z != b.Z:
			return a.Z < b.Z
		default:
			return a.X < b.X
		}
	})
}
