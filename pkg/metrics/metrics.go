package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pool metrics
	PoolActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harness_pool_active_workers",
			Help: "Number of pool worker goroutines currently executing an item",
		},
	)

	PoolQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harness_pool_queue_depth",
			Help: "Number of items admitted to the pool but not yet running",
		},
	)

	PoolDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harness_pool_dropped_total",
			Help: "Total number of items dropped because the admission queue was full",
		},
	)

	// Dispatch metrics
	DispatchGetWorkTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_dispatch_getwork_total",
			Help: "Total number of GetWork RPCs by outcome",
		},
		[]string{"outcome"},
	)

	DispatchPushbackEngaged = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harness_dispatch_pushback_engaged",
			Help: "Whether the dispatch loop is currently withholding new leases for memory pressure (1 = engaged)",
		},
	)

	// Memory metrics
	MemoryUsedBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harness_memory_used_bytes",
			Help: "Heap bytes allocated, as last sampled by the memory gate",
		},
	)

	MemoryTotalBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harness_memory_total_bytes",
			Help: "Current heap size obtained from the OS, as last sampled by the memory gate",
		},
	)

	MemoryCeilingBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harness_memory_ceiling_bytes",
			Help: "Configured memory ceiling in bytes",
		},
	)

	// Execution metrics
	ItemsExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_items_executed_total",
			Help: "Total number of work items executed by outcome",
		},
		[]string{"computation_id", "outcome"},
	)

	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harness_item_execution_duration_seconds",
			Help:    "Per-item execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"computation_id"},
	)

	// Commit metrics
	CommitBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harness_commit_bytes_total",
			Help: "Total bytes sent in CommitWork requests",
		},
	)

	CommitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_commit_requests_total",
			Help: "Total number of CommitWork RPCs by outcome",
		},
		[]string{"outcome"},
	)

	OutputQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harness_output_queue_depth",
			Help: "Number of commit requests queued per computation awaiting the aggregator",
		},
		[]string{"computation_id"},
	)

	// Failure reporting metrics
	ExceptionsReportedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_exceptions_reported_total",
			Help: "Total number of exceptions reported to the work service by computation",
		},
		[]string{"computation_id"},
	)

	RetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harness_retries_total",
			Help: "Total number of locally retried work items",
		},
	)
)

func init() {
	prometheus.MustRegister(
		PoolActiveWorkers,
		PoolQueueDepth,
		PoolDroppedTotal,
		DispatchGetWorkTotal,
		DispatchPushbackEngaged,
		MemoryUsedBytes,
		MemoryTotalBytes,
		MemoryCeilingBytes,
		ItemsExecutedTotal,
		ExecutionDuration,
		CommitBytesTotal,
		CommitRequestsTotal,
		OutputQueueDepth,
		ExceptionsReportedTotal,
		RetriesTotal,
	)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer, starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
