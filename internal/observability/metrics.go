package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ItemsMerged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_items_merged_total",
			Help: "Items fully merged across extraction phases",
		},
	)
	ItemsDegraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_items_degraded_total",
			Help: "Items kept with list-phase data only after detail failures",
		},
	)
	ItemsDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_items_discarded_total",
			Help: "Items dropped because no SKU was derivable",
		},
	)
	TaskAborts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_task_aborts_total",
			Help: "Collection tasks aborted by anti-bot escalation or cancellation",
		},
	)
	SnapshotsAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stock_snapshots_appended_total",
			Help: "Stock/review observations appended to the snapshot store",
		},
	)
	EstimatesComputed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sales_estimates_computed_total",
			Help: "Sales estimates computed from snapshot series",
		},
	)
)

func Start(port string) {
	prometheus.MustRegister(
		ItemsMerged,
		ItemsDegraded,
		ItemsDiscarded,
		TaskAborts,
		SnapshotsAppended,
		EstimatesComputed,
	)
	http.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(":"+port, nil)
}
