// Package shardmap provides a string-keyed concurrent map sharded by key hash.
// Readers take a per-shard RLock so lookups on different keys do not contend,
// which keeps hot-path reads (token validation, blacklist checks) from
// serializing behind unrelated writers.
package shardmap

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

// Map is a sharded concurrent map from string keys to values of type V.
// The zero value is not usable; call New.
type Map[V any] struct {
	shards [shardCount]shard[V]
}

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

// New returns an empty Map.
func New[V any]() *Map[V] {
	m := &Map[V]{}
	for i := range m.shards {
		m.shards[i].m = make(map[string]V)
	}
	return m
}

func (m *Map[V]) shard(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.shards[h.Sum32()%shardCount]
}

// Load returns the value for key and whether it was present.
func (m *Map[V]) Load(key string) (V, bool) {
	s := m.shard(key)
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()
	return v, ok
}

// Store sets the value for key, overwriting unconditionally.
func (m *Map[V]) Store(key string, v V) {
	s := m.shard(key)
	s.mu.Lock()
	s.m[key] = v
	s.mu.Unlock()
}

// Delete removes key if present.
func (m *Map[V]) Delete(key string) {
	s := m.shard(key)
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

// Len returns the total number of entries across all shards.
func (m *Map[V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// DeleteIf removes every entry for which pred returns true and reports how
// many were removed. Each shard is locked independently, so concurrent reads
// of other shards proceed during a sweep.
func (m *Map[V]) DeleteIf(pred func(key string, v V) bool) int {
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, v := range s.m {
			if pred(k, v) {
				delete(s.m, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Range calls f for each entry until f returns false. The snapshot per shard
// is taken under RLock; f must not call back into the map.
func (m *Map[V]) Range(f func(key string, v V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for k, v := range s.m {
			if !f(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}
