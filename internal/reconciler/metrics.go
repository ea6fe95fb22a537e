package reconciler

import "github.com/prometheus/client_golang/prometheus"

var (
	reconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronoloom_reconcile_runs_total",
			Help: "Reconcile passes by outcome",
		},
		[]string{"outcome"},
	)
	reconcileItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronoloom_reconcile_notifications_total",
			Help: "Notifications created, cancelled, skipped or failed by reconcile",
		},
		[]string{"op"},
	)
	reconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chronoloom_reconcile_duration_seconds",
			Help:    "Reconcile pass latency",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(reconcileRuns, reconcileItems, reconcileDuration)
}

func observe(res Result) {
	reconcileItems.WithLabelValues("created").Add(float64(len(res.Created)))
	reconcileItems.WithLabelValues("cancelled").Add(float64(len(res.Cancelled)))
	reconcileItems.WithLabelValues("skipped").Add(float64(len(res.Skipped)))
	reconcileItems.WithLabelValues("failed").Add(float64(len(res.Failures)))
}
