package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TokenVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tribute", Name: "guest_token_verifications_total", Help: "Guest token verifications by result."},
		[]string{"result"},
	)
	ShareDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tribute", Name: "share_decisions_total", Help: "Share link authorization decisions by result."},
		[]string{"result"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tribute", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tribute", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	CacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tribute", Name: "cache_invalidations_total", Help: "Cache tag invalidations by freshness class and result."},
		[]string{"class", "result"},
	)
	ViewCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tribute", Name: "view_cache_lookups_total", Help: "View cache lookups by view and result."},
		[]string{"view", "result"},
	)
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tribute", Name: "job_runs_total", Help: "Background job runs by job and result."},
		[]string{"job", "result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(TokenVerifications)
	reg.MustRegister(ShareDecisions)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(CacheInvalidations)
	reg.MustRegister(ViewCacheLookups)
	reg.MustRegister(JobRuns)
}
