package coordinator

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/hxuan190/dmm-router/internal/metrics"
)

var ErrSessionClosed = errors.New("session closed")

type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateFetching
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDebouncing:
		return "DEBOUNCING"
	case StateFetching:
		return "FETCHING"
	case StateReady:
		return "READY"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// RouteFetcher is the aggregation service as seen by a session.
type RouteFetcher interface {
	FetchRoute(ctx context.Context, req domain.RouteRequest) (*domain.AggregatedRoute, error)
}

// Result is one published cycle. Route and Comparison are both nil when the
// primary request failed.
type Result struct {
	Generation    uint64
	Input         domain.RouteRequest
	Route         *domain.AggregatedRoute
	Comparison    *domain.AggregatedRoute
	Err           error
	ComparisonErr error
	PublishedAt   time.Time
}

// Savings of the primary route against the comparison route, nil when
// either is missing.
func (r *Result) Savings() *big.Int {
	if r == nil || r.Route == nil || r.Comparison == nil {
		return nil
	}
	return r.Route.Savings(r.Comparison)
}

type Snapshot struct {
	ID       string
	State    State
	Input    *domain.RouteRequest
	Result   *Result
	LastSeen time.Time
}

type Options struct {
	Debounce time.Duration
	// ComparisonSource scopes the baseline request. Empty disables it.
	ComparisonSource string
}

// Session debounces user input and keeps at most one fetch cycle live.
// Every input bumps the generation; a cycle publishes only if its
// generation is still current when both requests have settled.
type Session struct {
	id      string
	fetcher RouteFetcher
	opts    Options

	mu         sync.Mutex
	state      State
	input      domain.RouteRequest
	hasInput   bool
	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	result     *Result
	changed    chan struct{}
	lastSeen   time.Time
	closed     bool
}

func NewSession(id string, fetcher RouteFetcher, opts Options) *Session {
	return &Session{
		id:       id,
		fetcher:  fetcher,
		opts:     opts,
		state:    StateIdle,
		changed:  make(chan struct{}),
		lastSeen: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// SetInput starts a new debounce window for req and cancels any active
// fetch right away. Re-submitting the input of a live or settled cycle is
// a no-op, except after a failure where it retries.
func (s *Session) SetInput(req domain.RouteRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrSessionClosed
	}
	s.lastSeen = time.Now()
	if s.hasInput && s.state != StateFailed && s.input.SameInput(req) {
		return false, nil
	}

	s.generation++
	gen := s.generation
	s.abortLocked()

	s.input = req
	s.hasInput = true
	s.state = StateDebouncing
	s.timer = time.AfterFunc(s.opts.Debounce, func() { s.startCycle(gen) })
	return true, nil
}

func (s *Session) abortLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) startCycle(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.timer = nil
	s.state = StateFetching
	req := s.input
	s.mu.Unlock()

	log.Debug().Str("session", s.id).Uint64("generation", gen).Msg("[routeCoordinator] cycle started")
	s.runCycle(ctx, gen, req)
}

func (s *Session) runCycle(ctx context.Context, gen uint64, req domain.RouteRequest) {
	var (
		wg                   sync.WaitGroup
		route, comparison    *domain.AggregatedRoute
		routeErr, compareErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		route, routeErr = s.fetcher.FetchRoute(ctx, req)
	}()
	if s.opts.ComparisonSource != "" {
		compReq := req
		compReq.Source = s.opts.ComparisonSource
		wg.Add(1)
		go func() {
			defer wg.Done()
			comparison, compareErr = s.fetcher.FetchRoute(ctx, compReq)
		}()
	}
	wg.Wait()

	s.settle(gen, req, route, comparison, routeErr, compareErr)
}

func (s *Session) settle(gen uint64, req domain.RouteRequest, route, comparison *domain.AggregatedRoute, routeErr, compareErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation {
		metrics.StaleResultsDiscarded.Inc()
		log.Debug().Str("session", s.id).Uint64("generation", gen).Uint64("current", s.generation).
			Msg("[routeCoordinator] stale cycle discarded")
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	res := &Result{
		Generation:  gen,
		Input:       req,
		PublishedAt: time.Now(),
	}
	if routeErr != nil || route == nil {
		if routeErr == nil {
			routeErr = errors.New("empty route")
		}
		res.Err = routeErr
		s.state = StateFailed
		metrics.CoordinatorCycles.WithLabelValues("failed").Inc()
		log.Warn().Err(routeErr).Str("session", s.id).Msg("[routeCoordinator] primary route failed")
	} else {
		res.Route = route
		res.Comparison = comparison
		res.ComparisonErr = compareErr
		s.state = StateReady
		metrics.CoordinatorCycles.WithLabelValues("ready").Inc()
		if compareErr != nil {
			log.Debug().Err(compareErr).Str("session", s.id).Msg("[routeCoordinator] comparison route failed")
		}
		log.Debug().Str("session", s.id).Uint64("generation", gen).Msg("[routeCoordinator] cycle published")
	}
	s.result = res
	close(s.changed)
	s.changed = make(chan struct{})
}

// Snapshot returns the session state and its last published result.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{ID: s.id, State: s.state, Result: s.result, LastSeen: s.lastSeen}
	if s.hasInput {
		in := s.input
		snap.Input = &in
	}
	return snap
}

// Changed returns a channel closed at the next publication.
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Wait blocks until a result with generation >= gen is published or ctx
// ends.
func (s *Session) Wait(ctx context.Context, gen uint64) (*Result, error) {
	for {
		s.mu.Lock()
		res, ch := s.result, s.changed
		s.mu.Unlock()
		if res != nil && res.Generation >= gen {
			return res, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Generation is the id of the newest input.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Close cancels any pending work. Results still in flight are discarded.
// Closing twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	s.abortLocked()
}
