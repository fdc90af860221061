// Package metrics holds the Prometheus collectors of the web tier.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Vote outcomes.
const (
	VoteApplied         = "applied"
	VoteRolledBack      = "rolled_back"
	VoteInFlight        = "in_flight"
	VoteUnauthenticated = "unauthenticated"
)

// Role resolution sources.
const (
	RoleFromCache   = "cache"
	RoleFromNetwork = "network"
	RoleFailed      = "failed"
	RoleStale       = "stale"
)

var (
	Votes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forumweb_votes_total",
			Help: "Vote attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	RoleResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forumweb_role_resolutions_total",
			Help: "Role resolver results, by source.",
		},
		[]string{"source"},
	)

	CacheErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forumweb_session_cache_errors_total",
			Help: "Session cache operations that failed and were ignored.",
		},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forumweb_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by route and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forumweb_upstream_request_duration_seconds",
			Help:    "Forum API call duration in seconds, by method and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	LiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forumweb_live_sessions",
			Help: "Browser sessions with in-memory state.",
		},
	)
)

// Register adds every collector to reg. Call once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		Votes,
		RoleResolutions,
		CacheErrors,
		RequestDuration,
		UpstreamDuration,
		LiveSessions,
	)
}

// Middleware records request durations. Routes are labelled by their gin
// pattern so path parameters don't explode cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves /metrics.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// ObserveUpstream records one forum API call.
func ObserveUpstream(method string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamDuration.WithLabelValues(strings.ToUpper(method), label).Observe(d.Seconds())
}
