package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pool graph metrics
	PoolCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dmm_router_pool_count",
		Help: "Number of pools in the most recently resolved graph",
	})

	PoolResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dmm_router_pool_resolve_duration_seconds",
		Help:    "Duration of candidate pool discovery and reserve reads",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	DiscoveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmm_router_discovery_failures_total",
			Help: "Pool lookups dropped while building the graph",
		},
		[]string{"stage"},
	)

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmm_router_quote_requests_total",
			Help: "Total number of quote requests",
		},
		[]string{"swap_mode", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dmm_router_quote_duration_seconds",
			Help:    "Quote request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"swap_mode"},
	)

	PathfinderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dmm_router_pathfinder_duration_seconds",
			Help:    "Exhaustive path search duration in seconds",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
		[]string{"trade_type"},
	)

	PathsEvaluated = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dmm_router_paths_evaluated",
		Help:    "Number of pool legs priced per path search",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 500},
	})

	PriceImpact = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dmm_router_price_impact_bps",
			Help:    "Price impact in basis points",
			Buckets: []float64{0, 10, 50, 100, 300, 500, 1000, 5000, 10000},
		},
		[]string{"severity"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmm_router_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmm_router_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// Route coordinator metrics
	CoordinatorCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmm_router_coordinator_cycles_total",
			Help: "Route fetch cycles by outcome",
		},
		[]string{"outcome"},
	)

	StaleResultsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dmm_router_stale_results_discarded_total",
		Help: "Cycle results dropped because a newer cycle superseded them",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dmm_router_active_sessions",
		Help: "Number of live route coordinator sessions",
	})

	RouteFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dmm_router_route_fetch_duration_seconds",
			Help:    "Routing service request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "status"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmm_router_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dmm_router_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
