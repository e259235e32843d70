package gen

import (
	"math"
	"testing"

	"github.com/OCharnyshevich/voxelworld/pkg/world/coord"
)

func TestNoiseRange(t *testing.T) {
	n := NewNoise(DeriveSeed(42, saltTerrain))

	tests := []struct {
		name   string
		sample func(f float64) float64
	}{
		{"2D", func(f float64) float64 { return n.Noise2D(f*0.37-500, f*0.53-500) }},
		{"3D", func(f float64) float64 { return n.Noise3D(f*0.37-500, f*0.53-500, f*0.71-500) }},
	}
	for _, tt := range tests {
		for i := 0; i < 10000; i++ {
			if v := tt.sample(float64(i)); v < -1 || v > 1 || math.IsNaN(v) {
				t.Fatalf("%s sample %d = %v, out of [-1,1]", tt.name, i, v)
			}
		}
	}
}

func TestNoiseZeroAtOrigin(t *testing.T) {
	n := NewNoise(7)
	if v := n.Noise2D(0, 0); math.Abs(v) > 1e-12 {
		t.Errorf("Noise2D(0,0) = %v, want 0", v)
	}
	if v := n.Noise3D(0, 0, 0); math.Abs(v) > 1e-12 {
		t.Errorf("Noise3D(0,0,0) = %v, want 0", v)
	}
}

func TestDeriveSeedSplitsStreams(t *testing.T) {
	seen := map[int64]uint64{}
	for _, salt := range []uint64{saltTerrain, saltClouds, saltResource, saltResource + 1, saltResource + 2} {
		s := DeriveSeed(42, salt)
		if s != DeriveSeed(42, salt) {
			t.Fatalf("DeriveSeed(42, %d) is not stable", salt)
		}
		if prev, dup := seen[s]; dup {
			t.Errorf("salts %d and %d derive the same seed %d", prev, salt, s)
		}
		seen[s] = salt
	}
	if DeriveSeed(1, saltTerrain) == DeriveSeed(2, saltTerrain) {
		t.Error("different world seeds derive the same terrain seed")
	}
}

func TestSamplersDerivedFromSeed(t *testing.T) {
	a := NewSamplers(42, 3)
	b := NewSamplers(42, 3)

	if len(a.Resources) != 3 {
		t.Fatalf("len(Resources) = %d, want 3", len(a.Resources))
	}
	if *a.Terrain != *b.Terrain || *a.Clouds != *b.Clouds {
		t.Fatal("samplers for the same seed differ")
	}
	for i := range a.Resources {
		if *a.Resources[i] != *b.Resources[i] {
			t.Fatalf("resource sampler %d differs", i)
		}
	}
	if *a.Terrain != *NewNoise(DeriveSeed(42, saltTerrain)) {
		t.Error("terrain sampler is not the terrain stream of the world seed")
	}
	if *a.Terrain == *a.Clouds || *a.Resources[0] == *a.Resources[1] {
		t.Error("samplers should be independent streams")
	}
}

// Two chunks of different widths must see the same surface at the same world
// column, and the surface must not jump where one chunk ends.
func TestTerrainHeightAcrossChunkEdges(t *testing.T) {
	s := NewSamplers(5, 0)
	tp := DefaultParams().Terrain
	const gridHeight = 64

	for _, width := range []int{8, 16} {
		for wx := -3 * width; wx < 3*width; wx++ {
			c := coord.ToChunk(wx, 0, 7, width)
			lx, _, lz := c.Local.World(c.Chunk, width)
			if lx != wx || lz != 7 {
				t.Fatalf("width %d: column %d maps back to (%d,%d)", width, wx, lx, lz)
			}
			h := tp.Height(s.Terrain, lx, lz, gridHeight)
			if want := tp.Height(s.Terrain, wx, 7, gridHeight); h != want {
				t.Fatalf("width %d: height at %d = %d, want %d", width, wx, h, want)
			}
			if coord.Mod(wx, width) != 0 {
				continue
			}
			// wx is the first column of a chunk; compare with the last column
			// of the chunk before it.
			if d := h - tp.Height(s.Terrain, wx-1, 7, gridHeight); d < -3 || d > 3 {
				t.Errorf("width %d: surface jumps by %d at chunk edge x=%d", width, d, wx)
			}
		}
	}
}
