package coordinator

import "sync"

const numShards = 16

// FNV-1a
const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// sessionMap is a sharded map of sessions by id to reduce lock contention.
type sessionMap struct {
	shards [numShards]sessionShard
}

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newSessionMap() *sessionMap {
	m := &sessionMap{}
	for i := 0; i < numShards; i++ {
		m.shards[i].sessions = make(map[string]*Session)
	}
	return m
}

func (m *sessionMap) getShard(id string) *sessionShard {
	h := uint64(fnvOffset64)
	for i := 0; i < len(id); i++ {
		h ^= uint64(id[i])
		h *= fnvPrime64
	}
	return &m.shards[h%numShards]
}

func (m *sessionMap) Get(id string) (*Session, bool) {
	shard := m.getShard(id)
	shard.mu.RLock()
	s, ok := shard.sessions[id]
	shard.mu.RUnlock()
	return s, ok
}

// GetOrCreate returns the session for id, building it with create when
// absent. The second result is true when a session was created.
func (m *sessionMap) GetOrCreate(id string, create func() *Session) (*Session, bool) {
	shard := m.getShard(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if s, ok := shard.sessions[id]; ok {
		return s, false
	}
	s := create()
	shard.sessions[id] = s
	return s, true
}

func (m *sessionMap) Delete(id string) (*Session, bool) {
	shard := m.getShard(id)
	shard.mu.Lock()
	s, ok := shard.sessions[id]
	delete(shard.sessions, id)
	shard.mu.Unlock()
	return s, ok
}

func (m *sessionMap) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		total += len(m.shards[i].sessions)
		m.shards[i].mu.RUnlock()
	}
	return total
}

// Range iterates over all sessions (acquires locks per shard)
func (m *sessionMap) Range(f func(id string, s *Session) bool) {
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		for k, v := range m.shards[i].sessions {
			if !f(k, v) {
				m.shards[i].mu.RUnlock()
				return
			}
		}
		m.shards[i].mu.RUnlock()
	}
}
