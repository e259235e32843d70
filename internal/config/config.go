// Package config holds the engine configuration and its file formats.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"github.com/OCharnyshevich/voxelworld/internal/world/gen"
)

// Edit store backends.
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
)

// ErrUnknownFormat is returned for config files whose extension is not
// .yaml, .yml, .toml or .json.
var ErrUnknownFormat = errors.New("unknown config format")

// Config holds the engine configuration.
type Config struct {
	Seed         int64       `json:"seed" yaml:"seed" toml:"seed"`
	ChunkWidth   int         `json:"chunk_width" yaml:"chunk_width" toml:"chunk_width"`
	ChunkHeight  int         `json:"chunk_height" yaml:"chunk_height" toml:"chunk_height"`
	DrawDistance int         `json:"draw_distance" yaml:"draw_distance" toml:"draw_distance"`
	AsyncLoading bool        `json:"async_loading" yaml:"async_loading" toml:"async_loading"`
	BudgetMillis int         `json:"budget_millis" yaml:"budget_millis" toml:"budget_millis"` // per deferred chunk
	Workers      int         `json:"workers" yaml:"workers" toml:"workers"`                   // 0 = GOMAXPROCS
	CatalogPath  string      `json:"catalog" yaml:"catalog" toml:"catalog"`                   // empty = built-in catalog
	Edits        EditsConfig `json:"edits" yaml:"edits" toml:"edits"`
	LogLevel     string      `json:"log_level" yaml:"log_level" toml:"log_level"`
	Generation   gen.Params  `json:"generation" yaml:"generation" toml:"generation"`
}

// EditsConfig selects where player edits are stored. Path is relative to the
// data directory unless absolute.
type EditsConfig struct {
	Backend string `json:"backend" yaml:"backend" toml:"backend"`
	Path    string `json:"path" yaml:"path" toml:"path"`
}

// DefaultConfig returns a Config with the stock world settings.
func DefaultConfig() *Config {
	return &Config{
		ChunkWidth:   32,
		ChunkHeight:  32,
		DrawDistance: 1,
		AsyncLoading: true,
		BudgetMillis: 1000,
		Edits:        EditsConfig{Backend: BackendMemory},
		LogLevel:     "info",
		Generation:   gen.DefaultParams(),
	}
}

// Budget returns the deferred generation budget.
func (c *Config) Budget() time.Duration {
	return time.Duration(c.BudgetMillis) * time.Millisecond
}

// SlogLevel parses LogLevel. Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Validate reports every setting that cannot produce a world.
func (c *Config) Validate() error {
	var errs []error
	if c.ChunkWidth <= 0 {
		errs = append(errs, fmt.Errorf("chunk width %d must be positive", c.ChunkWidth))
	}
	if c.ChunkHeight <= 0 {
		errs = append(errs, fmt.Errorf("chunk height %d must be positive", c.ChunkHeight))
	}
	if c.DrawDistance < 0 {
		errs = append(errs, fmt.Errorf("draw distance %d must not be negative", c.DrawDistance))
	}
	if c.BudgetMillis <= 0 {
		errs = append(errs, fmt.Errorf("budget %dms must be positive", c.BudgetMillis))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers %d must not be negative", c.Workers))
	}
	switch c.Edits.Backend {
	case BackendMemory:
	case BackendSQLite, BackendLevelDB:
		if c.Edits.Path == "" {
			errs = append(errs, fmt.Errorf("edits backend %q needs a path", c.Edits.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown edits backend %q", c.Edits.Backend))
	}
	if err := c.Generation.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Format returns the encoding implied by a file name: "yaml", "toml" or "json".
func Format(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	case ".json":
		return "json", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Decode parses data in the given format on top of the defaults.
func Decode(data []byte, format string) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, cfg)
	case "toml":
		err = toml.Unmarshal(data, cfg)
	case "json":
		err = json.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s config: %w", format, err)
	}
	return cfg, nil
}

// Encode serializes cfg in the given format.
func Encode(cfg *Config, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(cfg)
	case "toml":
		return toml.Marshal(*cfg)
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Load reads a config file, picking the decoder from its extension.
func Load(path string) (*Config, error) {
	format, err := Format(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Decode(data, format)
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["seed"] {
		cfg.Seed = fromFile.Seed
	}
	if !explicitFlags["chunk-width"] {
		cfg.ChunkWidth = fromFile.ChunkWidth
	}
	if !explicitFlags["chunk-height"] {
		cfg.ChunkHeight = fromFile.ChunkHeight
	}
	if !explicitFlags["draw-distance"] {
		cfg.DrawDistance = fromFile.DrawDistance
	}
	if !explicitFlags["async"] {
		cfg.AsyncLoading = fromFile.AsyncLoading
	}
	if !explicitFlags["budget"] {
		cfg.BudgetMillis = fromFile.BudgetMillis
	}
	if !explicitFlags["workers"] {
		cfg.Workers = fromFile.Workers
	}
	if !explicitFlags["catalog"] {
		cfg.CatalogPath = fromFile.CatalogPath
	}
	if !explicitFlags["edits-backend"] {
		cfg.Edits.Backend = fromFile.Edits.Backend
	}
	if !explicitFlags["edits-path"] {
		cfg.Edits.Path = fromFile.Edits.Path
	}
	if !explicitFlags["log-level"] {
		cfg.LogLevel = fromFile.LogLevel
	}
	// Generation parameters have no flags.
	cfg.Generation = fromFile.Generation
}
