// Package engine wires configuration, storage and the world into a running
// process driven by observer positions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/OCharnyshevich/voxelworld/internal/config"
	"github.com/OCharnyshevich/voxelworld/internal/storage"
	"github.com/OCharnyshevich/voxelworld/internal/world"
	"github.com/OCharnyshevich/voxelworld/internal/world/chunk"
	"github.com/OCharnyshevich/voxelworld/internal/world/edits"
)

// Engine owns a world, its edit store and the data directory they persist to.
type Engine struct {
	cfg   *config.Config
	log   *slog.Logger
	st    *storage.Storage
	edits edits.Store
	world *world.World
}

// New validates cfg, opens the edit store and catalog from st and creates the
// world. Nothing is generated until Run.
func New(cfg *config.Config, st *storage.Storage, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	catalog, err := st.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	store, err := st.OpenEdits(cfg.Edits)
	if err != nil {
		return nil, fmt.Errorf("open edits: %w", err)
	}

	w, err := world.New(world.Config{
		Seed:         cfg.Seed,
		Size:         chunk.Size{Width: cfg.ChunkWidth, Height: cfg.ChunkHeight},
		DrawDistance: cfg.DrawDistance,
		Async:        cfg.AsyncLoading,
		Workers:      cfg.Workers,
		Budget:       cfg.Budget(),
		Params:       cfg.Generation,
		Catalog:      catalog,
		Edits:        store,
	}, log.With("component", "world"))
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Engine{
		cfg:   cfg,
		log:   log,
		st:    st,
		edits: store,
		world: w,
	}, nil
}

// World returns the engine's world.
func (e *Engine) World() *world.World { return e.world }

// Run generates the spawn area and then moves the loaded window to every
// position received from observer. It returns when ctx is cancelled or
// observer is closed. Chunk failures are logged and retried on the next
// position.
func (e *Engine) Run(ctx context.Context, observer <-chan mgl64.Vec3) error {
	e.log.Info("engine started",
		"seed", e.cfg.Seed,
		"chunkWidth", e.cfg.ChunkWidth,
		"chunkHeight", e.cfg.ChunkHeight,
		"drawDistance", e.cfg.DrawDistance,
		"async", e.cfg.AsyncLoading,
		"edits", e.cfg.Edits.Backend,
	)

	if err := e.world.Generate(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		e.log.Warn("spawn area incomplete", "error", err)
	}
	e.log.Info("spawn ready", "height", e.world.SpawnHeight(), "chunks", len(e.world.LoadedChunks()))

	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine shutting down")
			return nil
		case p, ok := <-observer:
			if !ok {
				e.log.Info("observer closed")
				return nil
			}
			d, err := e.world.Update(ctx, p)
			if err != nil {
				if errors.Is(err, world.ErrClosed) {
					return err
				}
				e.log.Warn("update incomplete", "error", err)
			}
			if len(d.Added)+len(d.Removed) > 0 {
				e.log.Debug("observer moved",
					"x", p.X(), "y", p.Y(), "z", p.Z(),
					"added", len(d.Added),
					"removed", len(d.Removed),
				)
			}
		}
	}
}

// Close stops the world, snapshots in-memory edits and closes the edit store.
func (e *Engine) Close() error {
	var errs []error
	if err := e.world.Close(); err != nil {
		errs = append(errs, err)
	}
	if _, ok := e.edits.(*edits.MemoryStore); ok {
		if err := e.st.SaveEdits(e.edits); err != nil {
			errs = append(errs, fmt.Errorf("save edits: %w", err))
		}
	}
	if err := e.edits.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close edits: %w", err))
	}
	return errors.Join(errs...)
}
