package historytree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prometheus instruments of a tree. Several trees may share
// one Metrics value.
type Metrics struct {
	IntervalsInserted prometheus.Counter
	NodesClosed       prometheus.Counter
	NodeVisits        prometheus.Counter
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	QueryDuration     prometheus.Histogram
}

// NewMetrics builds the instruments and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IntervalsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "htree_intervals_inserted_total",
			Help: "Intervals inserted into history trees",
		}),
		NodesClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "htree_nodes_closed_total",
			Help: "Nodes closed and written to storage",
		}),
		NodeVisits: factory.NewCounter(prometheus.CounterOpts{
			Name: "htree_node_visits_total",
			Help: "Nodes visited by queries",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "htree_cache_hits_total",
			Help: "Node reads served by the node cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "htree_cache_misses_total",
			Help: "Node reads that went to the pager",
		}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "htree_query_duration_seconds",
			Help:    "Time from the first to the last step of a query",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		}),
	}
}
