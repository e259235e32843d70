// Package storage manages the on-disk data directory of a world.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/OCharnyshevich/voxelworld/internal/config"
	"github.com/OCharnyshevich/voxelworld/internal/world/block"
	"github.com/OCharnyshevich/voxelworld/internal/world/edits"
)

const (
	configFile   = "config.yaml"
	snapshotFile = "edits.json"
)

// Storage handles file-based persistence for config, catalog and edit data.
type Storage struct {
	dir string
	log *slog.Logger
}

// New creates a new Storage rooted at dir, creating subdirectories as needed.
func New(dir string, log *slog.Logger) (*Storage, error) {
	dirs := []string{
		dir,
		filepath.Join(dir, "world"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return &Storage{dir: dir, log: log}, nil
}

// Dir returns the data directory.
func (s *Storage) Dir() string { return s.dir }

// path resolves p against the data directory unless it is absolute.
func (s *Storage) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.dir, p)
}

// LoadConfig reads config.yaml. It returns nil if the file does not exist.
func (s *Storage) LoadConfig() (*config.Config, error) {
	path := filepath.Join(s.dir, configFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	s.log.Info("loaded config from file", "path", path)
	return cfg, nil
}

// SaveConfig writes cfg to config.yaml atomically.
func (s *Storage) SaveConfig(cfg *config.Config) error {
	data, err := config.Encode(cfg, "yaml")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return atomicWrite(filepath.Join(s.dir, configFile), data)
}

// LoadCatalog reads the block catalog at path, resolved against the data
// directory. An empty path yields the built-in catalog.
func (s *Storage) LoadCatalog(path string) (*block.Catalog, error) {
	if path == "" {
		return block.Default(), nil
	}
	c, err := block.Load(s.path(path))
	if err != nil {
		return nil, err
	}
	s.log.Info("loaded block catalog", "path", s.path(path), "blocks", c.Len())
	return c, nil
}

// OpenEdits opens the edit store selected by cfg. The memory backend is
// seeded from the JSON snapshot written by SaveEdits.
func (s *Storage) OpenEdits(cfg config.EditsConfig) (edits.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		m := edits.NewMemoryStore()
		if err := s.LoadEdits(m); err != nil {
			return nil, err
		}
		return m, nil
	case config.BackendSQLite:
		st, err := edits.OpenSQLite(s.path(cfg.Path))
		if err != nil {
			return nil, err
		}
		s.log.Info("opened sqlite edit store", "path", s.path(cfg.Path))
		return st, nil
	case config.BackendLevelDB:
		st, err := edits.OpenLevelDB(s.path(cfg.Path))
		if err != nil {
			return nil, err
		}
		s.log.Info("opened leveldb edit store", "path", s.path(cfg.Path))
		return st, nil
	default:
		return nil, fmt.Errorf("unknown edits backend %q", cfg.Backend)
	}
}

// LoadEdits reads world/edits.json and bulk-loads it into m.
func (s *Storage) LoadEdits(m *edits.MemoryStore) error {
	path := filepath.Join(s.dir, "world", snapshotFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read edits: %w", err)
	}

	var ed EditsData
	if err := json.Unmarshal(data, &ed); err != nil {
		return fmt.Errorf("parse edits: %w", err)
	}

	entries := make(map[edits.Key]block.ID, len(ed.Edits))
	for _, e := range ed.Edits {
		entries[edits.NewKey(e.ChunkX, e.ChunkZ, e.X, e.Y, e.Z)] = block.ID(e.Block)
	}

	m.Load(entries)
	s.log.Info("loaded edits", "count", len(entries))
	return nil
}

// SaveEdits writes every edit in st to world/edits.json atomically.
func (s *Storage) SaveEdits(st edits.Store) error {
	ed := EditsData{Edits: []EditEntry{}}
	err := st.Range(func(k edits.Key, id block.ID) bool {
		ed.Edits = append(ed.Edits, EditEntry{
			ChunkX: k.Chunk.X, ChunkZ: k.Chunk.Z,
			X: k.Local.X, Y: k.Local.Y, Z: k.Local.Z,
			Block: uint16(id),
		})
		return true
	})
	if err != nil {
		return fmt.Errorf("collect edits: %w", err)
	}
	ed.sort()

	data, err := json.MarshalIndent(&ed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')

	if err := atomicWrite(filepath.Join(s.dir, "world", snapshotFile), data); err != nil {
		return err
	}
	s.log.Info("saved edits", "count", len(ed.Edits))
	return nil
}

// atomicWrite writes data using a temp file + rename.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
