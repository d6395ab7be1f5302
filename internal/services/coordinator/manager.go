package coordinator

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/hxuan190/dmm-router/internal/metrics"
)

// Manager owns one Session per client id and reaps sessions that saw no
// input or reads for ttl.
type Manager struct {
	fetcher  RouteFetcher
	opts     Options
	ttl      time.Duration
	sessions *sessionMap

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewManager(fetcher RouteFetcher, opts Options, ttl time.Duration) *Manager {
	return &Manager{
		fetcher:  fetcher,
		opts:     opts,
		ttl:      ttl,
		sessions: newSessionMap(),
		stopChan: make(chan struct{}),
	}
}

// Start launches the reaper. A zero ttl keeps sessions forever.
func (m *Manager) Start() {
	if m.ttl <= 0 {
		return
	}
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopChan:
				return
			case now := <-ticker.C:
				m.Reap(now)
			}
		}
	}()
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	m.wg.Wait()
	m.Reset()
}

func (m *Manager) Get(id string) (*Session, bool) {
	s, ok := m.sessions.Get(id)
	if ok {
		s.touch()
	}
	return s, ok
}

// SetInput feeds req into the session id, creating it on first use.
func (m *Manager) SetInput(id string, req domain.RouteRequest) (*Session, bool, error) {
	s, created := m.sessions.GetOrCreate(id, func() *Session {
		return NewSession(id, m.fetcher, m.opts)
	})
	if created {
		metrics.ActiveSessions.Set(float64(m.sessions.Len()))
		log.Debug().Str("session", id).Msg("[sessionManager] session created")
	}
	restarted, err := s.SetInput(req)
	return s, restarted, err
}

func (m *Manager) Remove(id string) bool {
	s, ok := m.sessions.Delete(id)
	if ok {
		s.Close()
		metrics.ActiveSessions.Set(float64(m.sessions.Len()))
	}
	return ok
}

// Reap closes sessions idle for longer than ttl and returns how many.
func (m *Manager) Reap(now time.Time) int {
	var expired []string
	m.sessions.Range(func(id string, s *Session) bool {
		if s.idleSince(now) > m.ttl {
			expired = append(expired, id)
		}
		return true
	})
	for _, id := range expired {
		m.Remove(id)
	}
	if len(expired) > 0 {
		log.Info().Int("count", len(expired)).Msg("[sessionManager] reaped idle sessions")
	}
	return len(expired)
}

// Reset closes every session, used when the active chain changes.
func (m *Manager) Reset() {
	var ids []string
	m.sessions.Range(func(id string, _ *Session) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		m.Remove(id)
	}
}

func (m *Manager) Len() int {
	return m.sessions.Len()
}
