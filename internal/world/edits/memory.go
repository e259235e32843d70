package edits

import (
	"sync"

	"github.com/OCharnyshevich/voxelworld/internal/world/block"
	"github.com/OCharnyshevich/voxelworld/pkg/world/coord"
)

const shardCount = 64

type shard struct {
	mu     sync.RWMutex
	chunks map[coord.ChunkPos]map[coord.Local]block.ID
}

// MemoryStore keeps edits in memory, sharded by chunk so generation of
// different chunks does not contend on one lock.
type MemoryStore struct {
	shards [shardCount]shard
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].chunks = make(map[coord.ChunkPos]map[coord.Local]block.ID)
	}
	return s
}

func (s *MemoryStore) shard(c coord.ChunkPos) *shard {
	h := uint32(c.X)*73856093 ^ uint32(c.Z)*19349663
	return &s.shards[h%shardCount]
}

func (s *MemoryStore) Contains(k Key) (bool, error) {
	_, ok, err := s.Get(k)
	return ok, err
}

func (s *MemoryStore) Get(k Key) (block.ID, bool, error) {
	sh := s.shard(k.Chunk)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	id, ok := sh.chunks[k.Chunk][k.Local]
	return id, ok, nil
}

func (s *MemoryStore) Set(k Key, id block.ID) error {
	sh := s.shard(k.Chunk)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m, ok := sh.chunks[k.Chunk]
	if !ok {
		m = make(map[coord.Local]block.ID)
		sh.chunks[k.Chunk] = m
	}
	m[k.Local] = id
	return nil
}

// Chunk returns a copy of the edits in one chunk.
func (s *MemoryStore) Chunk(cx, cz int) (map[coord.Local]block.ID, error) {
	c := coord.ChunkPos{X: cx, Z: cz}
	sh := s.shard(c)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	src := sh.chunks[c]
	out := make(map[coord.Local]block.ID, len(src))
	for l, id := range src {
		out[l] = id
	}
	return out, nil
}

func (s *MemoryStore) Range(fn func(k Key, id block.ID) bool) error {
	for i := range s.shards {
		sh := &s.shards[i]
		var entries []Key
		var ids []block.ID
		sh.mu.RLock()
		for c, m := range sh.chunks {
			for l, id := range m {
				entries = append(entries, Key{Chunk: c, Local: l})
				ids = append(ids, id)
			}
		}
		sh.mu.RUnlock()

		for j, k := range entries {
			if !fn(k, ids[j]) {
				return nil
			}
		}
	}
	return nil
}

// Load bulk-inserts edits, overwriting existing entries.
func (s *MemoryStore) Load(entries map[Key]block.ID) {
	for k, id := range entries {
		_ = s.Set(k, id)
	}
}

// Len returns the number of recorded edits.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, m := range sh.chunks {
			n += len(m)
		}
		sh.mu.RUnlock()
	}
	return n
}

func (s *MemoryStore) Clear() error {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		sh.chunks = make(map[coord.ChunkPos]map[coord.Local]block.ID)
		sh.mu.Unlock()
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
