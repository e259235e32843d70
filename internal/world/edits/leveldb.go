package edits

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/util"

	"github.com/OCharnyshevich/voxelworld/internal/world/block"
	"github.com/OCharnyshevich/voxelworld/pkg/world/coord"
)

const (
	chunkPrefixLen = 8
	levelKeyLen    = 20
)

// LevelDBStore persists edits in a LevelDB directory. Keys are prefixed by
// chunk so a chunk's edits are one contiguous range.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates the database directory at path.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

// putInt writes v with its sign bit flipped so byte order matches numeric order.
func putInt(b []byte, v int) {
	binary.BigEndian.PutUint32(b, uint32(int32(v))^0x80000000)
}

func getInt(b []byte) int {
	return int(int32(binary.BigEndian.Uint32(b) ^ 0x80000000))
}

func chunkPrefix(cx, cz int) []byte {
	b := make([]byte, chunkPrefixLen)
	putInt(b[0:], cx)
	putInt(b[4:], cz)
	return b
}

func encodeKey(k Key) []byte {
	b := make([]byte, levelKeyLen)
	putInt(b[0:], k.Chunk.X)
	putInt(b[4:], k.Chunk.Z)
	putInt(b[8:], k.Local.X)
	putInt(b[12:], k.Local.Y)
	putInt(b[16:], k.Local.Z)
	return b
}

func decodeKey(b []byte) (Key, error) {
	if len(b) != levelKeyLen {
		return Key{}, fmt.Errorf("malformed edit key of %d bytes", len(b))
	}
	return NewKey(getInt(b[0:]), getInt(b[4:]), getInt(b[8:]), getInt(b[12:]), getInt(b[16:])), nil
}

func decodeID(b []byte) (block.ID, error) {
	if len(b) != 2 {
		return block.Empty, fmt.Errorf("malformed edit value of %d bytes", len(b))
	}
	return block.ID(binary.BigEndian.Uint16(b)), nil
}

func (s *LevelDBStore) Contains(k Key) (bool, error) {
	ok, err := s.db.Has(encodeKey(k), nil)
	if err != nil {
		return false, fmt.Errorf("has edit %+v: %w", k, err)
	}
	return ok, nil
}

func (s *LevelDBStore) Get(k Key) (block.ID, bool, error) {
	v, err := s.db.Get(encodeKey(k), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return block.Empty, false, nil
	}
	if err != nil {
		return block.Empty, false, fmt.Errorf("get edit %+v: %w", k, err)
	}
	id, err := decodeID(v)
	if err != nil {
		return block.Empty, false, fmt.Errorf("get edit %+v: %w", k, err)
	}
	return id, true, nil
}

func (s *LevelDBStore) Set(k Key, id block.ID) error {
	v := make([]byte, 2)
	binary.BigEndian.PutUint16(v, uint16(id))
	if err := s.db.Put(encodeKey(k), v, nil); err != nil {
		return fmt.Errorf("set edit %+v: %w", k, err)
	}
	return nil
}

func (s *LevelDBStore) Chunk(cx, cz int) (map[coord.Local]block.ID, error) {
	it := s.db.NewIterator(util.BytesPrefix(chunkPrefix(cx, cz)), nil)
	defer it.Release()

	out := make(map[coord.Local]block.ID)
	for it.Next() {
		k, err := decodeKey(it.Key())
		if err != nil {
			return nil, err
		}
		id, err := decodeID(it.Value())
		if err != nil {
			return nil, err
		}
		out[k.Local] = id
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterate chunk (%d,%d): %w", cx, cz, err)
	}
	return out, nil
}

func (s *LevelDBStore) Range(fn func(k Key, id block.ID) bool) error {
	it := s.db.NewIterator(nil, nil)
	defer it.Release()

	for it.Next() {
		k, err := decodeKey(it.Key())
		if err != nil {
			return err
		}
		id, err := decodeID(it.Value())
		if err != nil {
			return err
		}
		if !fn(k, id) {
			break
		}
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("iterate edits: %w", err)
	}
	return nil
}

func (s *LevelDBStore) Clear() error {
	it := s.db.NewIterator(nil, nil)
	batch := new(leveldb.Batch)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return fmt.Errorf("iterate edits: %w", err)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("clear edits: %w", err)
	}
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
