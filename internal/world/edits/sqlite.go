package edits

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/OCharnyshevich/voxelworld/internal/world/block"
	"github.com/OCharnyshevich/voxelworld/pkg/world/coord"
)

// SQLiteStore persists edits in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS edits (
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			block INTEGER NOT NULL,
			PRIMARY KEY (cx, cz, x, y, z)
		) WITHOUT ROWID;`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init %s: %w", path, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Contains(k Key) (bool, error) {
	_, ok, err := s.Get(k)
	return ok, err
}

func (s *SQLiteStore) Get(k Key) (block.ID, bool, error) {
	var id int64
	err := s.db.QueryRow(
		`SELECT block FROM edits WHERE cx = ? AND cz = ? AND x = ? AND y = ? AND z = ?`,
		k.Chunk.X, k.Chunk.Z, k.Local.X, k.Local.Y, k.Local.Z,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return block.Empty, false, nil
	}
	if err != nil {
		return block.Empty, false, fmt.Errorf("get edit %+v: %w", k, err)
	}
	return block.ID(id), true, nil
}

func (s *SQLiteStore) Set(k Key, id block.ID) error {
	_, err := s.db.Exec(
		`INSERT INTO edits (cx, cz, x, y, z, block) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cx, cz, x, y, z) DO UPDATE SET block = excluded.block`,
		k.Chunk.X, k.Chunk.Z, k.Local.X, k.Local.Y, k.Local.Z, int64(id),
	)
	if err != nil {
		return fmt.Errorf("set edit %+v: %w", k, err)
	}
	return nil
}

func (s *SQLiteStore) Chunk(cx, cz int) (map[coord.Local]block.ID, error) {
	rows, err := s.db.Query(`SELECT x, y, z, block FROM edits WHERE cx = ? AND cz = ?`, cx, cz)
	if err != nil {
		return nil, fmt.Errorf("query chunk (%d,%d): %w", cx, cz, err)
	}
	defer rows.Close()

	out := make(map[coord.Local]block.ID)
	for rows.Next() {
		var l coord.Local
		var id int64
		if err := rows.Scan(&l.X, &l.Y, &l.Z, &id); err != nil {
			return nil, fmt.Errorf("scan chunk (%d,%d): %w", cx, cz, err)
		}
		out[l] = block.ID(id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query chunk (%d,%d): %w", cx, cz, err)
	}
	return out, nil
}

// Range reads every edit before calling fn, since the single connection is
// held while rows are open.
func (s *SQLiteStore) Range(fn func(k Key, id block.ID) bool) error {
	rows, err := s.db.Query(`SELECT cx, cz, x, y, z, block FROM edits ORDER BY cx, cz, x, y, z`)
	if err != nil {
		return fmt.Errorf("query edits: %w", err)
	}

	type entry struct {
		k  Key
		id block.ID
	}
	var all []entry
	for rows.Next() {
		var e entry
		var id int64
		if err := rows.Scan(&e.k.Chunk.X, &e.k.Chunk.Z, &e.k.Local.X, &e.k.Local.Y, &e.k.Local.Z, &id); err != nil {
			rows.Close()
			return fmt.Errorf("scan edits: %w", err)
		}
		e.id = block.ID(id)
		all = append(all, e)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("query edits: %w", err)
	}

	for _, e := range all {
		if !fn(e.k, e.id) {
			break
		}
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM edits`); err != nil {
		return fmt.Errorf("clear edits: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
