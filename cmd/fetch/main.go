package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	get "github.com/hashicorp/go-getter"

	"github.com/OCharnyshevich/voxelworld/internal/config"
	"github.com/OCharnyshevich/voxelworld/internal/world/block"
)

// errNotEmpty guards data directories that may hold saved edits.
var errNotEmpty = errors.New("output directory is not empty (use -force to replace it)")

func main() {
	var (
		src     = flag.String("src", "", "world bundle source (any go-getter URL, e.g. git::https://host/repo.git//worlds/demo)")
		out     = flag.String("o", "./data", "output data directory")
		catalog = flag.String("catalog", "blocks.yaml", "catalog file inside the bundle to validate, if present")
		force   = flag.Bool("force", false, "replace a non-empty output directory, including its saved edits")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if *src == "" {
		log.Error("source url required")
		os.Exit(2)
	}
	if *out == "" {
		log.Error("output dir path required")
		os.Exit(2)
	}

	if err := fetch(log, *src, *out, *catalog, *force); err != nil {
		log.Error("fetch", "error", err)
		os.Exit(1)
	}
	log.Info("done", "dst", *out)
}

// fetch downloads src next to out, validates it and only then moves it into
// place. out is left untouched on any failure.
func fetch(log *slog.Logger, src, out, catalog string, force bool) error {
	if err := checkOutput(out, force); err != nil {
		return err
	}

	parent := filepath.Dir(out)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, ".fetch-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	staged := filepath.Join(tmp, "bundle")
	log.Info("downloading world bundle", "src", src, "dst", staged)
	if err := get.Get(staged, src); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if err := validateBundle(log, staged, catalog); err != nil {
		return err
	}

	if err := os.RemoveAll(out); err != nil {
		return fmt.Errorf("clear output directory: %w", err)
	}
	if err := os.Rename(staged, out); err != nil {
		return fmt.Errorf("move bundle into place: %w", err)
	}
	return nil
}

// checkOutput allows a missing or empty out, and a non-empty one only when
// force is set.
func checkOutput(out string, force bool) error {
	entries, err := os.ReadDir(out)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("inspect output directory: %w", err)
	case len(entries) > 0 && !force:
		return fmt.Errorf("%s: %w", out, errNotEmpty)
	}
	return nil
}

func validateBundle(log *slog.Logger, dir, catalog string) error {
	cfgPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(cfgPath); err == nil {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("bundle config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("bundle config: %w", err)
		}
		log.Info("config ok", "seed", cfg.Seed, "edits", cfg.Edits.Backend)
	}

	catPath := filepath.Join(dir, catalog)
	if _, err := os.Stat(catPath); err == nil {
		c, err := block.Load(catPath)
		if err != nil {
			return fmt.Errorf("bundle catalog: %w", err)
		}
		log.Info("catalog ok", "blocks", c.Len(), "resources", len(c.Resources()))
	}
	return nil
}
