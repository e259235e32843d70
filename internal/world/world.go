// Package world streams chunks around an observer and routes block edits to
// the chunk that owns them.
package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/OCharnyshevich/voxelworld/internal/world/block"
	"github.com/OCharnyshevich/voxelworld/internal/world/chunk"
	"github.com/OCharnyshevich/voxelworld/internal/world/edits"
	"github.com/OCharnyshevich/voxelworld/internal/world/gen"
	"github.com/OCharnyshevich/voxelworld/pkg/world/coord"
)

// ErrClosed is returned by operations on a closed World.
var ErrClosed = errors.New("world closed")

// DefaultBudget bounds a single deferred chunk generation.
const DefaultBudget = time.Second

// Config describes a world. Zero Workers, Budget, Catalog and Edits fall back
// to GOMAXPROCS, DefaultBudget, block.Default() and a fresh memory store.
type Config struct {
	Seed         int64
	Size         chunk.Size
	DrawDistance int
	Async        bool
	Workers      int
	Budget       time.Duration
	Params       gen.Params
	Catalog      *block.Catalog
	Edits        edits.Store
}

// Delta is the change in the loaded set produced by one Update.
type Delta struct {
	Retained []coord.ChunkPos
	Added    []coord.ChunkPos
	Removed  []coord.ChunkPos
}

// World owns the chunk map. Chunks are created Unloaded and generated either
// inline by Update or by the deferred scheduler.
type World struct {
	cfg Config
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	mu     sync.RWMutex
	gen    *chunk.Generator
	chunks map[coord.ChunkPos]*chunk.Chunk

	sched *scheduler
}

// New creates an empty world. Nothing is generated until Generate or Update.
func New(cfg Config, log *slog.Logger) (*World, error) {
	if cfg.DrawDistance < 0 {
		return nil, fmt.Errorf("draw distance %d must not be negative", cfg.DrawDistance)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.Catalog == nil {
		cfg.Catalog = block.Default()
	}
	if cfg.Edits == nil {
		cfg.Edits = edits.NewMemoryStore()
	}
	if log == nil {
		log = slog.Default()
	}

	g, err := chunk.NewGenerator(cfg.Seed, cfg.Size, cfg.Params, cfg.Catalog, cfg.Edits)
	if err != nil {
		return nil, fmt.Errorf("new world: %w", err)
	}
	if err := cfg.Params.Validate(); err != nil {
		log.Warn("generation parameters are invalid, chunks will fail to load", "error", err)
	}

	w := &World{
		cfg:    cfg,
		log:    log,
		gen:    g,
		chunks: make(map[coord.ChunkPos]*chunk.Chunk),
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	if cfg.Async {
		w.sched = newScheduler(cfg.Workers, w.loadDeferred)
	}
	return w, nil
}

// Seed returns the seed the world currently generates from.
func (w *World) Seed() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gen.Seed()
}

// Catalog returns the block catalog.
func (w *World) Catalog() *block.Catalog { return w.cfg.Catalog }

// Edits returns the store player edits are recorded in.
func (w *World) Edits() edits.Store { return w.cfg.Edits }

// Size returns the chunk size.
func (w *World) Size() chunk.Size { return w.cfg.Size }

func (w *World) generator() *chunk.Generator {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gen
}

// WorldToChunkCoords splits a world block position into its chunk and local
// position.
func (w *World) WorldToChunkCoords(x, y, z int) coord.Coords {
	return coord.ToChunk(x, y, z, w.cfg.Size.Width)
}

// window returns the chunks within DrawDistance of centre, ordered by x then z.
func (w *World) window(centre coord.ChunkPos) []coord.ChunkPos {
	d := w.cfg.DrawDistance
	out := make([]coord.ChunkPos, 0, (2*d+1)*(2*d+1))
	for x := centre.X - d; x <= centre.X+d; x++ {
		for z := centre.Z - d; z <= centre.Z+d; z++ {
			out = append(out, coord.ChunkPos{X: x, Z: z})
		}
	}
	return out
}

// DesiredSet returns the chunks that should be loaded for an observer at p.
func (w *World) DesiredSet(p mgl64.Vec3) []coord.ChunkPos {
	return w.window(coord.FromWorld(p, w.cfg.Size.Width).Chunk)
}

// Update moves the loaded window to the observer at p. Chunks leaving the
// window are disposed, new ones are created and generated inline or handed to
// the deferred scheduler. In inline mode the returned error joins every chunk
// failure; failed chunks stay Unloaded and are retried on the next Update.
func (w *World) Update(ctx context.Context, p mgl64.Vec3) (Delta, error) {
	if w.closed.Load() {
		return Delta{}, ErrClosed
	}
	centre := coord.FromWorld(p, w.cfg.Size.Width).Chunk
	desired := w.window(centre)

	var (
		d     Delta
		stale []*chunk.Chunk
		load  []job
	)

	w.mu.Lock()
	for pos, c := range w.chunks {
		if pos.Chebyshev(centre) > w.cfg.DrawDistance {
			delete(w.chunks, pos)
			stale = append(stale, c)
			d.Removed = append(d.Removed, pos)
		}
	}
	for _, pos := range desired {
		c, ok := w.chunks[pos]
		if ok {
			d.Retained = append(d.Retained, pos)
		} else {
			c = chunk.New(pos, w.cfg.Size, w.cfg.Edits)
			w.chunks[pos] = c
			d.Added = append(d.Added, pos)
		}
		if c.State() == chunk.Unloaded {
			load = append(load, job{pos: pos, c: c})
		}
	}
	g := w.gen
	w.mu.Unlock()

	for _, c := range stale {
		c.Dispose()
	}
	sortPositions(d.Removed)

	w.log.Debug("world update",
		"centre", centre,
		"retained", len(d.Retained),
		"added", len(d.Added),
		"removed", len(d.Removed),
		"pending", len(load),
	)

	if w.sched != nil {
		for _, j := range load {
			w.sched.enqueue(j)
		}
		return d, nil
	}
	return d, w.generateAll(ctx, g, load)
}

// Generate disposes every chunk and synchronously loads the window around
// the origin.
func (w *World) Generate(ctx context.Context) error {
	if w.closed.Load() {
		return ErrClosed
	}

	w.mu.Lock()
	old := w.chunks
	w.chunks = make(map[coord.ChunkPos]*chunk.Chunk)
	var load []job
	for _, pos := range w.window(coord.ChunkPos{}) {
		c := chunk.New(pos, w.cfg.Size, w.cfg.Edits)
		w.chunks[pos] = c
		load = append(load, job{pos: pos, c: c})
	}
	g := w.gen
	w.mu.Unlock()

	for _, c := range old {
		c.Dispose()
	}
	w.log.Info("generating world", "seed", g.Seed(), "chunks", len(load))
	return w.generateAll(ctx, g, load)
}

// Reset clears all recorded edits, switches to seed and regenerates.
func (w *World) Reset(ctx context.Context, seed int64) error {
	if w.closed.Load() {
		return ErrClosed
	}
	if err := w.cfg.Edits.Clear(); err != nil {
		return fmt.Errorf("reset world: clear edits: %w", err)
	}
	g, err := chunk.NewGenerator(seed, w.cfg.Size, w.cfg.Params, w.cfg.Catalog, w.cfg.Edits)
	if err != nil {
		return fmt.Errorf("reset world: %w", err)
	}

	w.mu.Lock()
	w.gen = g
	w.mu.Unlock()

	return w.Generate(ctx)
}

// generateAll runs jobs in parallel, at most Workers at a time.
func (w *World) generateAll(ctx context.Context, g *chunk.Generator, jobs []job) error {
	var (
		eg   errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	eg.SetLimit(w.cfg.Workers)
	for _, j := range jobs {
		j := j
		eg.Go(func() error {
			if err := w.report(j.pos, g.Generate(ctx, j.c)); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return errors.Join(errs...)
}

// loadDeferred is the scheduler's job handler.
func (w *World) loadDeferred(j job) {
	w.mu.RLock()
	current, g := w.chunks[j.pos], w.gen
	w.mu.RUnlock()
	if current != j.c || j.c.State() != chunk.Unloaded {
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.Budget)
	defer cancel()
	_ = w.report(j.pos, g.Generate(ctx, j.c))

	w.mu.RLock()
	current = w.chunks[j.pos]
	w.mu.RUnlock()
	if current != j.c {
		j.c.Dispose()
	}
}

// report logs a generation result and returns err unless the chunk was
// abandoned by a concurrent dispose or load.
func (w *World) report(pos coord.ChunkPos, err error) error {
	switch {
	case err == nil:
		w.log.Debug("chunk loaded", "chunk", pos)
		return nil
	case errors.Is(err, chunk.ErrDisposed), errors.Is(err, chunk.ErrNotUnloaded):
		w.log.Debug("chunk load abandoned", "chunk", pos, "error", err)
		return nil
	default:
		w.log.Warn("chunk generation failed", "chunk", pos, "error", err)
		return err
	}
}

// Wait blocks until every deferred generation job has finished. It returns
// immediately in inline mode.
func (w *World) Wait() {
	if w.sched != nil {
		w.sched.wait()
	}
}

// Pending returns the number of deferred jobs queued or running.
func (w *World) Pending() int {
	if w.sched == nil {
		return 0
	}
	return w.sched.backlog()
}

// Close stops the scheduler and disposes every chunk. The edit store is left
// open for its owner to close.
func (w *World) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	w.cancel()
	if w.sched != nil {
		w.sched.close()
	}

	w.mu.Lock()
	old := w.chunks
	w.chunks = make(map[coord.ChunkPos]*chunk.Chunk)
	w.mu.Unlock()

	for _, c := range old {
		c.Dispose()
	}
	w.log.Info("world closed", "chunks", len(old))
	return nil
}

// Chunk returns the chunk mapped at pos, in any state.
func (w *World) Chunk(pos coord.ChunkPos) (*chunk.Chunk, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.chunks[pos]
	return c, ok
}

// LoadedChunks returns the positions of all Loaded chunks, ordered by x then z.
func (w *World) LoadedChunks() []coord.ChunkPos {
	w.mu.RLock()
	out := make([]coord.ChunkPos, 0, len(w.chunks))
	for pos, c := range w.chunks {
		if c.State() == chunk.Loaded {
			out = append(out, pos)
		}
	}
	w.mu.RUnlock()
	sortPositions(out)
	return out
}

// SurfaceHeight returns the generated terrain height of world column (x, z),
// ignoring edits and trees.
func (w *World) SurfaceHeight(x, z int) int {
	return w.generator().HeightAt(x, z)
}

// SpawnHeight returns the height an observer should stand at above the origin.
func (w *World) SpawnHeight() int {
	return w.SurfaceHeight(0, 0) + 1
}

// GetBlock returns the cell at world position (x, y, z). It reports false
// when the owning chunk is absent or not loaded, or y is outside the grid.
func (w *World) GetBlock(x, y, z int) (chunk.Cell, bool) {
	cc := w.WorldToChunkCoords(x, y, z)
	c, ok := w.Chunk(cc.Chunk)
	if !ok {
		return chunk.Cell{}, false
	}
	return c.Block(cc.Local)
}

// AddBlock places block id at (x, y, z). Occupied positions and positions in
// chunks that are not loaded are left alone. An id missing from the catalog
// returns an error wrapping block.ErrUnknown.
func (w *World) AddBlock(x, y, z int, id block.ID) error {
	if id == block.Empty {
		return nil
	}
	if _, ok := w.cfg.Catalog.ByID(id); !ok {
		return fmt.Errorf("add block at (%d, %d, %d): %w: id %d", x, y, z, block.ErrUnknown, id)
	}
	cc := w.WorldToChunkCoords(x, y, z)
	c, ok := w.Chunk(cc.Chunk)
	if !ok {
		return nil
	}
	changed, err := c.AddBlock(cc.Local, id)
	if err != nil {
		return fmt.Errorf("add block at (%d, %d, %d): %w", x, y, z, err)
	}
	if changed {
		w.log.Debug("block added", "x", x, "y", y, "z", z, "block", id)
	}
	return nil
}

// RemoveBlock clears the block at (x, y, z). Empty positions and positions in
// chunks that are not loaded are left alone.
func (w *World) RemoveBlock(x, y, z int) error {
	cc := w.WorldToChunkCoords(x, y, z)
	c, ok := w.Chunk(cc.Chunk)
	if !ok {
		return nil
	}
	changed, err := c.RemoveBlock(cc.Local)
	if err != nil {
		return fmt.Errorf("remove block at (%d, %d, %d): %w", x, y, z, err)
	}
	if changed {
		w.log.Debug("block removed", "x", x, "y", y, "z", z)
	}
	return nil
}

func sortPositions(ps []coord.ChunkPos) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Z < ps[j].Z
	})
}
