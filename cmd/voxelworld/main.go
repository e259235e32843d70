package main

import (
	"context"
	"flag"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/OCharnyshevich/voxelworld/internal/config"
	"github.com/OCharnyshevich/voxelworld/internal/engine"
	"github.com/OCharnyshevich/voxelworld/internal/storage"
)

func main() {
	cfg := config.DefaultConfig()

	var (
		dataDir    = flag.String("data", "./data", "data directory")
		configPath = flag.String("config", "", "config file (.yaml, .toml or .json); defaults to <data>/config.yaml")
		steps      = flag.Int("steps", 0, "observer steps to simulate (0 = until interrupted)")
		speed      = flag.Float64("speed", 4, "observer distance per step in blocks")
		interval   = flag.Duration("interval", 100*time.Millisecond, "delay between observer steps")
	)
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "world seed")
	flag.IntVar(&cfg.ChunkWidth, "chunk-width", cfg.ChunkWidth, "chunk width and depth in blocks")
	flag.IntVar(&cfg.ChunkHeight, "chunk-height", cfg.ChunkHeight, "chunk height in blocks")
	flag.IntVar(&cfg.DrawDistance, "draw-distance", cfg.DrawDistance, "loaded radius in chunks")
	flag.BoolVar(&cfg.AsyncLoading, "async", cfg.AsyncLoading, "generate chunks on background workers")
	flag.IntVar(&cfg.BudgetMillis, "budget", cfg.BudgetMillis, "per-chunk background generation budget in ms")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "generation workers (0 = GOMAXPROCS)")
	flag.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "block catalog YAML file")
	flag.StringVar(&cfg.Edits.Backend, "edits-backend", cfg.Edits.Backend, "edit store: memory, sqlite or leveldb")
	flag.StringVar(&cfg.Edits.Path, "edits-path", cfg.Edits.Path, "edit store path for sqlite and leveldb")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	var level slog.LevelVar
	level.Set(cfg.SlogLevel())
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))

	st, err := storage.New(*dataDir, log)
	if err != nil {
		log.Error("open data directory", "error", err)
		os.Exit(1)
	}

	var fromFile *config.Config
	if *configPath != "" {
		fromFile, err = config.Load(*configPath)
	} else {
		fromFile, err = st.LoadConfig()
	}
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	if fromFile != nil {
		config.Merge(cfg, fromFile, explicit)
	} else if err := st.SaveConfig(cfg); err != nil {
		log.Warn("save default config", "error", err)
	}
	level.Set(cfg.SlogLevel())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, err := engine.New(cfg, st, log)
	if err != nil {
		log.Error("create engine", "error", err)
		os.Exit(1)
	}

	start := mgl64.Vec3{0.5, float64(eng.World().SpawnHeight()), 0.5}
	observer := make(chan mgl64.Vec3)
	go walk(ctx, observer, start, *steps, *speed, *interval)

	runErr := eng.Run(ctx, observer)
	if err := eng.Close(); err != nil {
		log.Error("close engine", "error", err)
	}
	if runErr != nil {
		log.Error("engine error", "error", runErr)
		os.Exit(1)
	}
}

// walk moves a simulated observer along a widening spiral and closes out
// once steps have been taken.
func walk(ctx context.Context, out chan<- mgl64.Vec3, pos mgl64.Vec3, steps int, speed float64, interval time.Duration) {
	defer close(out)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dir := mgl64.Vec3{1, 0, 0}
	turn := mgl64.Rotate3DY(math.Pi / 2)
	leg, taken := 1, 0
	for i := 0; steps == 0 || i < steps; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pos = pos.Add(dir.Mul(speed))
		select {
		case out <- pos:
		case <-ctx.Done():
			return
		}

		taken++
		if taken == leg {
			dir = turn.Mul3x1(dir)
			taken = 0
			leg++
		}
	}
}
