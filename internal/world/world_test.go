package world

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kr/pretty"

	"github.com/OCharnyshevich/voxelworld/internal/world/block"
	"github.com/OCharnyshevich/voxelworld/internal/world/chunk"
	"github.com/OCharnyshevich/voxelworld/internal/world/edits"
	"github.com/OCharnyshevich/voxelworld/internal/world/gen"
	"github.com/OCharnyshevich/voxelworld/pkg/world/coord"
)

const sand block.ID = 8

func testConfig() Config {
	p := gen.DefaultParams()
	p.Trees.Frequency = 0
	return Config{
		Seed:         42,
		Size:         chunk.Size{Width: 8, Height: 16},
		DrawDistance: 1,
		Workers:      4,
		Params:       p,
	}
}

func newTestWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	w, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func at(x, z float64) mgl64.Vec3 { return mgl64.Vec3{x, 10, z} }

func positions(xz ...int) []coord.ChunkPos {
	var out []coord.ChunkPos
	for i := 0; i+1 < len(xz); i += 2 {
		out = append(out, coord.ChunkPos{X: xz[i], Z: xz[i+1]})
	}
	return out
}

func TestUpdateStreamingDelta(t *testing.T) {
	w := newTestWorld(t, testConfig())
	ctx := context.Background()

	d, err := w.Update(ctx, at(0.5, 0.5))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(d.Added) != 9 || len(d.Retained) != 0 || len(d.Removed) != 0 {
		t.Fatalf("first Update delta = %d/%d/%d, want 9 added", len(d.Added), len(d.Retained), len(d.Removed))
	}

	// One chunk east.
	d, err = w.Update(ctx, at(8.5, 0.5))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := Delta{
		Retained: positions(0, -1, 0, 0, 0, 1, 1, -1, 1, 0, 1, 1),
		Added:    positions(2, -1, 2, 0, 2, 1),
		Removed:  positions(-1, -1, -1, 0, -1, 1),
	}
	if diff := pretty.Diff(d, want); len(diff) > 0 {
		t.Errorf("delta mismatch: %v", diff)
	}

	loaded := w.LoadedChunks()
	if diff := pretty.Diff(loaded, append(append([]coord.ChunkPos{}, want.Retained...), want.Added...)); len(diff) > 0 {
		t.Errorf("LoadedChunks mismatch: %v", diff)
	}
	if _, ok := w.Chunk(coord.ChunkPos{X: -1}); ok {
		t.Error("removed chunk is still mapped")
	}
}

func TestUpdateSamePositionRetainsEverything(t *testing.T) {
	w := newTestWorld(t, testConfig())
	ctx := context.Background()
	if _, err := w.Update(ctx, at(3, 3)); err != nil {
		t.Fatal(err)
	}
	before, _ := w.Chunk(coord.ChunkPos{})

	d, err := w.Update(ctx, at(4, 7.9))
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Retained) != 9 || len(d.Added)+len(d.Removed) != 0 {
		t.Errorf("delta = %d/%d/%d, want 9 retained", len(d.Retained), len(d.Added), len(d.Removed))
	}
	if after, _ := w.Chunk(coord.ChunkPos{}); after != before {
		t.Error("retained chunk was replaced")
	}
}

func TestDesiredSetNegativeCoordinates(t *testing.T) {
	w := newTestWorld(t, testConfig())

	got := w.DesiredSet(at(-0.5, -8.5))
	want := positions(-2, -3, -2, -2, -2, -1, -1, -3, -1, -2, -1, -1, 0, -3, 0, -2, 0, -1)
	if diff := pretty.Diff(got, want); len(diff) > 0 {
		t.Errorf("DesiredSet mismatch: %v", diff)
	}
}

func TestDrawDistanceZero(t *testing.T) {
	cfg := testConfig()
	cfg.DrawDistance = 0
	w := newTestWorld(t, cfg)

	if _, err := w.Update(context.Background(), at(-20, 20)); err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(w.LoadedChunks(), positions(-3, 2)); len(diff) > 0 {
		t.Errorf("LoadedChunks mismatch: %v", diff)
	}
}

func TestDeferredLoading(t *testing.T) {
	cfg := testConfig()
	cfg.Async = true
	cfg.Workers = 2
	w := newTestWorld(t, cfg)
	ctx := context.Background()

	if _, err := w.Update(ctx, at(0, 0)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	w.Wait()
	if got := len(w.LoadedChunks()); got != 9 {
		t.Fatalf("loaded %d chunks after Wait, want 9", got)
	}
	if w.Pending() != 0 {
		t.Errorf("Pending() = %d after Wait, want 0", w.Pending())
	}

	// Blocks are identical to an inline world with the same seed.
	inline := newTestWorld(t, testConfig())
	if _, err := inline.Update(ctx, at(0, 0)); err != nil {
		t.Fatal(err)
	}
	for x := -8; x < 16; x += 3 {
		for z := -8; z < 16; z += 5 {
			for y := 0; y < 16; y++ {
				a, _ := w.GetBlock(x, y, z)
				b, _ := inline.GetBlock(x, y, z)
				if a.ID != b.ID {
					t.Fatalf("block (%d,%d,%d) = %d deferred, %d inline", x, y, z, a.ID, b.ID)
				}
			}
		}
	}
}

func TestDeferredDisposesStaleChunks(t *testing.T) {
	cfg := testConfig()
	cfg.Async = true
	cfg.Workers = 1
	w := newTestWorld(t, cfg)
	ctx := context.Background()

	if _, err := w.Update(ctx, at(0, 0)); err != nil {
		t.Fatal(err)
	}
	var old []*chunk.Chunk
	for _, pos := range w.DesiredSet(at(0, 0)) {
		c, _ := w.Chunk(pos)
		old = append(old, c)
	}

	if _, err := w.Update(ctx, at(800, 800)); err != nil {
		t.Fatal(err)
	}
	w.Wait()

	for _, c := range old {
		if c.State() != chunk.Disposed {
			t.Errorf("chunk %v state = %s, want disposed", c.Pos, c.State())
		}
	}
	if got := len(w.LoadedChunks()); got != 9 {
		t.Errorf("loaded %d chunks, want 9", got)
	}
}

func TestEditsSurviveReload(t *testing.T) {
	w := newTestWorld(t, testConfig())
	ctx := context.Background()
	if _, err := w.Update(ctx, at(0, 0)); err != nil {
		t.Fatal(err)
	}

	h := w.SurfaceHeight(3, -3)
	if cell, ok := w.GetBlock(3, h, -3); !ok || cell.ID == block.Empty {
		t.Fatalf("GetBlock(3,%d,-3) = (%+v, %v), want the surface block", h, cell, ok)
	}
	if err := w.RemoveBlock(3, h, -3); err != nil {
		t.Fatal(err)
	}
	if err := w.AddBlock(3, 14, -3, sand); err != nil {
		t.Fatal(err)
	}

	// Walk away until the chunk unloads, then come back.
	if _, err := w.Update(ctx, at(100, 100)); err != nil {
		t.Fatal(err)
	}
	if _, ok := w.GetBlock(3, 14, -3); ok {
		t.Fatal("chunk should be unloaded")
	}
	if _, err := w.Update(ctx, at(0, 0)); err != nil {
		t.Fatal(err)
	}

	if cell, _ := w.GetBlock(3, h, -3); cell.ID != block.Empty {
		t.Errorf("removed block came back as %d", cell.ID)
	}
	if cell, _ := w.GetBlock(3, 14, -3); cell.ID != sand || !cell.HasSlot() {
		t.Errorf("added block = %+v, want visible sand", cell)
	}
}

func TestAddBlockRejectsUnknownID(t *testing.T) {
	w := newTestWorld(t, testConfig())
	if _, err := w.Update(context.Background(), at(0, 0)); err != nil {
		t.Fatal(err)
	}
	err := w.AddBlock(0, 14, 0, 999)
	if !errors.Is(err, block.ErrUnknown) {
		t.Errorf("AddBlock error = %v, want ErrUnknown", err)
	}
	if cell, _ := w.GetBlock(0, 14, 0); cell.ID == 999 {
		t.Error("unknown block was placed")
	}
}

func TestEditsOutsideLoadedChunksAreIgnored(t *testing.T) {
	w := newTestWorld(t, testConfig())
	if _, err := w.Update(context.Background(), at(0, 0)); err != nil {
		t.Fatal(err)
	}

	if err := w.AddBlock(500, 14, 500, sand); err != nil {
		t.Errorf("AddBlock on an absent chunk: %v", err)
	}
	if err := w.RemoveBlock(500, 3, 500); err != nil {
		t.Errorf("RemoveBlock on an absent chunk: %v", err)
	}
	n := 0
	_ = w.Edits().Range(func(k edits.Key, id block.ID) bool { n++; return true })
	if n != 0 {
		t.Errorf("%d edits recorded for absent chunks, want 0", n)
	}
}

func TestGetBlockBounds(t *testing.T) {
	w := newTestWorld(t, testConfig())
	if _, err := w.Update(context.Background(), at(0, 0)); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		x, y, z int
		ok      bool
	}{
		{0, 0, 0, true},
		{-8, 15, -8, true},
		{0, -1, 0, false},
		{0, 16, 0, false},
		{16, 0, 0, false},
		{-9, 0, 0, false},
	} {
		if _, ok := w.GetBlock(tc.x, tc.y, tc.z); ok != tc.ok {
			t.Errorf("GetBlock(%d,%d,%d) ok = %v, want %v", tc.x, tc.y, tc.z, ok, tc.ok)
		}
	}
}

func TestSurfaceHeightMatchesChunks(t *testing.T) {
	w := newTestWorld(t, testConfig())
	if err := w.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}
	for x := -8; x < 16; x++ {
		for z := -8; z < 16; z++ {
			cc := w.WorldToChunkCoords(x, 0, z)
			c, ok := w.Chunk(cc.Chunk)
			if !ok {
				t.Fatalf("chunk %v missing after Generate", cc.Chunk)
			}
			if got, want := c.SurfaceHeight(cc.Local.X, cc.Local.Z), w.SurfaceHeight(x, z); got != want {
				t.Errorf("column (%d,%d) height %d, want %d", x, z, got, want)
			}
		}
	}
	if w.SpawnHeight() != w.SurfaceHeight(0, 0)+1 {
		t.Error("SpawnHeight should stand one block above the origin surface")
	}
}

func TestResetClearsEdits(t *testing.T) {
	w := newTestWorld(t, testConfig())
	ctx := context.Background()
	if err := w.Generate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.AddBlock(1, 14, 1, sand); err != nil {
		t.Fatal(err)
	}
	old, _ := w.Chunk(coord.ChunkPos{})

	if err := w.Reset(ctx, 7); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if w.Seed() != 7 {
		t.Errorf("Seed() = %d, want 7", w.Seed())
	}
	if old.State() != chunk.Disposed {
		t.Errorf("pre-reset chunk state = %s, want disposed", old.State())
	}
	if cell, _ := w.GetBlock(1, 14, 1); cell.ID == sand {
		t.Error("edit survived Reset")
	}
	if ok, _ := w.Edits().Contains(edits.NewKey(0, 0, 1, 14, 1)); ok {
		t.Error("edit store still holds the edit")
	}
}

func TestInvalidParamsLeaveChunksUnloaded(t *testing.T) {
	cfg := testConfig()
	cfg.Params.Clouds.Density = 2
	w := newTestWorld(t, cfg)
	ctx := context.Background()

	_, err := w.Update(ctx, at(0, 0))
	if !errors.Is(err, gen.ErrInvalidParams) {
		t.Fatalf("Update error = %v, want ErrInvalidParams", err)
	}
	if got := len(w.LoadedChunks()); got != 0 {
		t.Errorf("loaded %d chunks, want 0", got)
	}
	c, ok := w.Chunk(coord.ChunkPos{})
	if !ok || c.State() != chunk.Unloaded {
		t.Fatalf("origin chunk mapped = %v, want an unloaded chunk", ok)
	}

	// The failed chunks are retried.
	d, err := w.Update(ctx, at(0, 0))
	if !errors.Is(err, gen.ErrInvalidParams) || len(d.Retained) != 9 {
		t.Errorf("retry = (%d retained, %v)", len(d.Retained), err)
	}
}

func TestClosedWorld(t *testing.T) {
	w := newTestWorld(t, testConfig())
	if err := w.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Update(context.Background(), at(0, 0)); !errors.Is(err, ErrClosed) {
		t.Errorf("Update after Close error = %v, want ErrClosed", err)
	}
	if len(w.LoadedChunks()) != 0 {
		t.Error("Close should dispose every chunk")
	}
}
