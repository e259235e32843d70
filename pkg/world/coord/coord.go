// Package coord converts between world block coordinates and chunk-relative
// coordinates. Chunks partition the X and Z axes only; Y is shared.
package coord

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ChunkPos identifies a chunk by its X and Z coordinates.
type ChunkPos struct{ X, Z int }

// Local is a block position relative to the origin of its chunk.
type Local struct{ X, Y, Z int }

// Coords is the result of translating a world position into chunk space.
type Coords struct {
	Chunk ChunkPos
	Local Local
}

// FloorDiv returns a/b rounded towards negative infinity. b must be positive.
func FloorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

// Mod returns a modulo b in [0, b). b must be positive.
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// ToChunk splits the world block position (x, y, z) into its chunk and the
// position inside that chunk for chunks of the given width.
func ToChunk(x, y, z, width int) Coords {
	c := ChunkPos{X: FloorDiv(x, width), Z: FloorDiv(z, width)}
	return Coords{
		Chunk: c,
		Local: Local{X: x - width*c.X, Y: y, Z: z - width*c.Z},
	}
}

// FromWorld floors a continuous world position to the block containing it and
// returns its chunk coordinates.
func FromWorld(p mgl64.Vec3, width int) Coords {
	return ToChunk(
		int(math.Floor(p.X())),
		int(math.Floor(p.Y())),
		int(math.Floor(p.Z())),
		width,
	)
}

// Origin returns the world block position of the chunk's (0, 0, 0) corner.
func (p ChunkPos) Origin(width int) (x, y, z int) {
	return p.X * width, 0, p.Z * width
}

// Chebyshev returns the larger of the X and Z distances between two chunks.
func (p ChunkPos) Chebyshev(o ChunkPos) int {
	dx, dz := p.X-o.X, p.Z-o.Z
	if dx < 0 {
		dx = -dx
	}
	if dz < 0 {
		dz = -dz
	}
	return max(dx, dz)
}

// World returns the world block position of l inside chunk c.
func (l Local) World(c ChunkPos, width int) (x, y, z int) {
	return c.X*width + l.X, l.Y, c.Z*width + l.Z
}

// Add offsets l by (dx, dy, dz).
func (l Local) Add(dx, dy, dz int) Local {
	return Local{X: l.X + dx, Y: l.Y + dy, Z: l.Z + dz}
}
