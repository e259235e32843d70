// Package edits records player block changes so they survive chunk unloads.
// Every backend is safe for concurrent use.
package edits

import (
	"github.com/OCharnyshevich/voxelworld/internal/world/block"
	"github.com/OCharnyshevich/voxelworld/pkg/world/coord"
)

// Key addresses a single block by its chunk and chunk-local position.
type Key struct {
	Chunk coord.ChunkPos
	Local coord.Local
}

// NewKey builds a Key from its five components.
func NewKey(cx, cz, x, y, z int) Key {
	return Key{Chunk: coord.ChunkPos{X: cx, Z: cz}, Local: coord.Local{X: x, Y: y, Z: z}}
}

// Store maps block positions to the id a player placed there. An entry
// holding block.Empty records a removal and is distinct from no entry.
type Store interface {
	// Contains reports whether an edit exists for k.
	Contains(k Key) (bool, error)
	// Get returns the edited id for k.
	Get(k Key) (block.ID, bool, error)
	// Set records id at k, replacing any previous edit.
	Set(k Key, id block.ID) error
	// Chunk returns every edit inside the chunk at (cx, cz).
	Chunk(cx, cz int) (map[coord.Local]block.ID, error)
	// Range calls fn for every edit until fn returns false. fn must not call
	// back into the store.
	Range(fn func(k Key, id block.ID) bool) error
	// Clear removes all edits.
	Clear() error
	Close() error
}
