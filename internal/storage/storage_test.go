package storage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/kr/pretty"

	"github.com/OCharnyshevich/voxelworld/internal/config"
	"github.com/OCharnyshevich/voxelworld/internal/world/block"
	"github.com/OCharnyshevich/voxelworld/internal/world/edits"
)

func newStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewCreatesDirectories(t *testing.T) {
	s := newStorage(t)
	if fi, err := os.Stat(filepath.Join(s.Dir(), "world")); err != nil || !fi.IsDir() {
		t.Errorf("world directory missing: %v", err)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := newStorage(t)

	cfg, err := s.LoadConfig()
	if err != nil || cfg != nil {
		t.Fatalf("LoadConfig on empty dir = (%v, %v), want (nil, nil)", cfg, err)
	}

	want := config.DefaultConfig()
	want.Seed = 31
	want.DrawDistance = 2
	if err := s.SaveConfig(want); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := pretty.Diff(got, want); len(diff) > 0 {
		t.Errorf("config mismatch: %v", diff)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), configFile+".tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestEditsSnapshotRoundTrip(t *testing.T) {
	s := newStorage(t)

	src := edits.NewMemoryStore()
	want := map[edits.Key]block.ID{
		edits.NewKey(-1, 2, 0, 5, 3):  7,
		edits.NewKey(0, 0, 1, 1, 1):   block.Empty,
		edits.NewKey(4, -9, 31, 0, 0): 3,
	}
	for k, id := range want {
		if err := src.Set(k, id); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SaveEdits(src); err != nil {
		t.Fatalf("SaveEdits: %v", err)
	}

	st, err := s.OpenEdits(config.EditsConfig{Backend: config.BackendMemory})
	if err != nil {
		t.Fatalf("OpenEdits: %v", err)
	}
	got := map[edits.Key]block.ID{}
	_ = st.Range(func(k edits.Key, id block.ID) bool {
		got[k] = id
		return true
	})
	if diff := pretty.Diff(got, want); len(diff) > 0 {
		t.Errorf("edits mismatch: %v", diff)
	}
}

func TestSaveEditsEmptyStore(t *testing.T) {
	s := newStorage(t)
	if err := s.SaveEdits(edits.NewMemoryStore()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(), "world", snapshotFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\n  \"edits\": []\n}\n" {
		t.Errorf("snapshot = %q", data)
	}
}

func TestOpenEditsBackends(t *testing.T) {
	s := newStorage(t)
	for _, cfg := range []config.EditsConfig{
		{Backend: config.BackendSQLite, Path: "edits.db"},
		{Backend: config.BackendLevelDB, Path: "edits"},
	} {
		t.Run(cfg.Backend, func(t *testing.T) {
			st, err := s.OpenEdits(cfg)
			if err != nil {
				t.Fatalf("OpenEdits: %v", err)
			}
			defer st.Close()
			if err := st.Set(edits.NewKey(1, 1, 1, 1, 1), 2); err != nil {
				t.Fatal(err)
			}
			if _, err := os.Stat(filepath.Join(s.Dir(), cfg.Path)); err != nil {
				t.Errorf("store not created under the data directory: %v", err)
			}
		})
	}

	if _, err := s.OpenEdits(config.EditsConfig{Backend: "redis"}); err == nil {
		t.Error("OpenEdits(redis) should fail")
	}
}

func TestLoadCatalog(t *testing.T) {
	s := newStorage(t)

	def, err := s.LoadCatalog("")
	if err != nil || def.Len() != block.Default().Len() {
		t.Fatalf("LoadCatalog(\"\") = (%v, %v), want the built-in catalog", def, err)
	}

	data, err := block.Default().Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "blocks.yaml"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := s.LoadCatalog("blocks.yaml")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if diff := pretty.Diff(c.Types(), block.Default().Types()); len(diff) > 0 {
		t.Errorf("catalog mismatch: %v", diff)
	}
}
