// Package metrics exposes Prometheus collectors for the rank tracker.
//
// Init() 전에 호출된 관측 함수는 전부 no-op이다. 배치/테스트처럼 메트릭
// 서버가 없는 실행 경로에서도 코어 패키지가 그대로 돌아야 하기 때문.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	searchCallsTotal     *prometheus.CounterVec
	rankChecksTotal      *prometheus.CounterVec
	alertsTotal          *prometheus.CounterVec
	transitionsTotal     *prometheus.CounterVec
	batchDurationSeconds prometheus.Histogram
	budgetRemaining      prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
// ⭐ SSOT: 메트릭 등록은 여기서만
func Init() {
	once.Do(func() {
		searchCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyrank_search_api_calls_total",
				Help: "Total shop search API calls, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		rankChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyrank_rank_checks_total",
				Help: "Total per-pair rank checks, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		alertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyrank_alerts_total",
				Help: "Total rank alerts emitted, labeled by alert type.",
			},
			[]string{"type"},
		)

		transitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyrank_lifecycle_transitions_total",
				Help: "Total lifecycle transitions, labeled by source and target state.",
			},
			[]string{"from", "to"},
		)

		batchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "keyrank_batch_duration_seconds",
				Help:    "Histogram of daily batch run durations.",
				Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
			},
		)

		budgetRemaining = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "keyrank_budget_remaining",
				Help: "Remaining daily search API call budget.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSearchCall counts one shop search API call for the given outcome
// (ok, rate_limited, server_error, error).
func ObserveSearchCall(outcome string) {
	if searchCallsTotal == nil {
		return
	}
	searchCallsTotal.WithLabelValues(outcome).Inc()
}

// AddRankChecks counts n per-pair rank checks for the given outcome
// (ranked, unranked, failed, skipped).
func AddRankChecks(outcome string, n int) {
	if rankChecksTotal == nil || n <= 0 {
		return
	}
	rankChecksTotal.WithLabelValues(outcome).Add(float64(n))
}

// ObserveAlert counts one emitted rank alert.
func ObserveAlert(alertType string) {
	if alertsTotal == nil {
		return
	}
	alertsTotal.WithLabelValues(alertType).Inc()
}

// ObserveTransition counts one lifecycle transition edge.
func ObserveTransition(from, to string) {
	if transitionsTotal == nil {
		return
	}
	transitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveBatchDuration records how long a daily batch run took.
func ObserveBatchDuration(d time.Duration) {
	if batchDurationSeconds == nil {
		return
	}
	batchDurationSeconds.Observe(d.Seconds())
}

// SetBudgetRemaining updates the remaining daily call budget gauge.
func SetBudgetRemaining(remaining int) {
	if budgetRemaining == nil {
		return
	}
	budgetRemaining.Set(float64(remaining))
}
