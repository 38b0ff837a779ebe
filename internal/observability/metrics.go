package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ObjectStoreOperations counts object store calls by driver, operation and result.
	ObjectStoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_objectstore_operations_total",
		Help: "Total object store calls by driver, operation and result",
	}, []string{"driver", "operation", "result"})

	// ObjectStoreLatency records object store call latency.
	ObjectStoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "propertyhub_objectstore_latency_seconds",
		Help:    "Object store call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver", "operation"})

	// OrphanedObjects counts uploaded objects no saved record references.
	OrphanedObjects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_orphaned_objects_total",
		Help: "Objects left in the store without a referencing property",
	}, []string{"reason"})

	// PropertyMutations counts completed property mutations by type.
	PropertyMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_property_mutations_total",
		Help: "Completed property mutations by type",
	}, []string{"type"})

	// WebSocketBackpressureDrops counts feed messages dropped for slow clients.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_websocket_backpressure_drops_total",
		Help: "Property feed messages dropped due to backpressure",
	}, []string{"reason"})
)

// ObserveStoreCall records the outcome and latency of one object store call.
func ObserveStoreCall(driver, operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ObjectStoreOperations.WithLabelValues(driver, operation, result).Inc()
	ObjectStoreLatency.WithLabelValues(driver, operation).Observe(time.Since(start).Seconds())
}
