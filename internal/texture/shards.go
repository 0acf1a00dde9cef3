package texture

import "sync"

const (
	shardCount = 16
	shardMask  = shardCount - 1
)

// shardMap is a string-keyed map split across 16 independently locked
// shards. V must be comparable so that entries can be swapped or removed
// only while they still hold a known value.
type shardMap[V comparable] struct {
	shards [shardCount]shard[V]
}

type shard[V comparable] struct {
	mu sync.RWMutex
	m  map[string]V
}

func newShardMap[V comparable]() *shardMap[V] {
	s := &shardMap[V]{}
	for i := range s.shards {
		s.shards[i].m = make(map[string]V)
	}
	return s
}

// fnv32a is FNV-1a over the key without the allocation of hash/fnv.
func fnv32a(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func (s *shardMap[V]) shard(key string) *shard[V] {
	return &s.shards[fnv32a(key)&shardMask]
}

func (s *shardMap[V]) Load(key string) (V, bool) {
	sh := s.shard(key)
	sh.mu.RLock()
	v, ok := sh.m[key]
	sh.mu.RUnlock()
	return v, ok
}

func (s *shardMap[V]) Store(key string, v V) {
	sh := s.shard(key)
	sh.mu.Lock()
	sh.m[key] = v
	sh.mu.Unlock()
}

// LoadOrStore returns the existing value for key if present. Otherwise it
// stores v and returns it with loaded == false.
func (s *shardMap[V]) LoadOrStore(key string, v V) (actual V, loaded bool) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cur, ok := sh.m[key]; ok {
		return cur, true
	}
	sh.m[key] = v
	return v, false
}

// LoadOrCreate is LoadOrStore with a constructor that only runs on a miss.
func (s *shardMap[V]) LoadOrCreate(key string, create func() V) (actual V, loaded bool) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cur, ok := sh.m[key]; ok {
		return cur, true
	}
	v := create()
	sh.m[key] = v
	return v, false
}

func (s *shardMap[V]) CompareAndSwap(key string, old, v V) bool {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cur, ok := sh.m[key]; !ok || cur != old {
		return false
	}
	sh.m[key] = v
	return true
}

func (s *shardMap[V]) CompareAndDelete(key string, old V) bool {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cur, ok := sh.m[key]; !ok || cur != old {
		return false
	}
	delete(sh.m, key)
	return true
}

func (s *shardMap[V]) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}

// Range calls fn for a snapshot of each shard, outside the shard lock, so fn
// may modify the map. It stops when fn returns false.
func (s *shardMap[V]) Range(fn func(key string, v V) bool) {
	type kv struct {
		k string
		v V
	}
	var buf []kv
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		buf = buf[:0]
		for k, v := range sh.m {
			buf = append(buf, kv{k, v})
		}
		sh.mu.RUnlock()

		for _, e := range buf {
			if !fn(e.k, e.v) {
				return
			}
		}
	}
}

func (s *shardMap[V]) Clear() {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		clear(sh.m)
		sh.mu.Unlock()
	}
}
