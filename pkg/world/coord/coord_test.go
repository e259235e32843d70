package coord

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestFloorDiv(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{0, 16, 0},
		{15, 16, 0},
		{16, 16, 1},
		{-1, 16, -1},
		{-16, 16, -1},
		{-17, 16, -2},
		{-32, 32, -1},
		{-33, 32, -2},
		{7, 4, 1},
		{-7, 4, -2},
	}
	for _, tt := range tests {
		if got := FloorDiv(tt.a, tt.b); got != tt.want {
			t.Errorf("FloorDiv(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestToChunkRoundTrip(t *testing.T) {
	for _, w := range []int{1, 3, 4, 16, 32} {
		for x := -200; x <= 200; x++ {
			c := ToChunk(x, 5, -x, w)
			if c.Local.X < 0 || c.Local.X >= w {
				t.Fatalf("w=%d x=%d: local x %d out of [0,%d)", w, x, c.Local.X, w)
			}
			if c.Local.Z < 0 || c.Local.Z >= w {
				t.Fatalf("w=%d z=%d: local z %d out of [0,%d)", w, -x, c.Local.Z, w)
			}
			if got := w*c.Chunk.X + c.Local.X; got != x {
				t.Fatalf("w=%d: reconstructed x = %d, want %d", w, got, x)
			}
			if got := w*c.Chunk.Z + c.Local.Z; got != -x {
				t.Fatalf("w=%d: reconstructed z = %d, want %d", w, got, -x)
			}
			if c.Local.Y != 5 {
				t.Fatalf("local y = %d, want 5", c.Local.Y)
			}
		}
	}
}

func TestToChunkNegative(t *testing.T) {
	c := ToChunk(-1, 0, -32, 32)
	want := Coords{Chunk: ChunkPos{-1, -1}, Local: Local{31, 0, 0}}
	if c != want {
		t.Errorf("ToChunk(-1,0,-32) = %+v, want %+v", c, want)
	}
}

func TestFromWorld(t *testing.T) {
	c := FromWorld(mgl64.Vec3{-0.5, 10.9, 4.2}, 4)
	want := Coords{Chunk: ChunkPos{-1, 1}, Local: Local{3, 10, 0}}
	if c != want {
		t.Errorf("FromWorld = %+v, want %+v", c, want)
	}
}

func TestLocalWorld(t *testing.T) {
	x, y, z := Local{1, 2, 3}.World(ChunkPos{-2, 1}, 16)
	if x != -31 || y != 2 || z != 19 {
		t.Errorf("World() = (%d,%d,%d), want (-31,2,19)", x, y, z)
	}
}

func TestChebyshev(t *testing.T) {
	if got := (ChunkPos{1, -3}).Chebyshev(ChunkPos{-1, 0}); got != 3 {
		t.Errorf("Chebyshev = %d, want 3", got)
	}
}
