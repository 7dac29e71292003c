package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// System metrics
	SystemMemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_memory_bytes",
		Help: "Current system memory usage",
	})

	SystemGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_goroutines",
		Help: "Number of goroutines",
	})

	// Input metrics
	RowsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "converter_rows_read_total",
			Help: "Rows read from each input table",
		},
		[]string{"source"},
	)

	MalformedRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "converter_malformed_rows_total",
		Help: "Attribute strings with at least one unparsable key/value pair",
	})

	VocabularyDuplicateLabels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "converter_vocabulary_duplicate_labels",
		Help: "Vocabulary labels carried by more than one node",
	})

	// Graph metrics
	EdgesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "converter_edges_emitted_total",
			Help: "Edges written, by predicate",
		},
		[]string{"predicate"},
	)

	EdgesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "converter_edges_skipped_total",
			Help: "Derived edges not emitted, by predicate and reason",
		},
		[]string{"predicate", "reason"},
	)

	NodesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "converter_nodes_emitted_total",
			Help: "Nodes written, by kind",
		},
		[]string{"kind"},
	)

	DuplicateNodes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "converter_duplicate_nodes_total",
		Help: "Nodes dropped because their ID was already emitted",
	})

	// Pipeline metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "converter_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"stage"},
	)
)

// UpdateSystemMetrics updates system-level metrics
func UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	SystemMemoryUsage.Set(float64(m.Alloc))
	SystemGoroutines.Set(float64(runtime.NumGoroutine()))
}

// WriteTextfile writes every registered metric to path in the text
// exposition format read by the node_exporter textfile collector.
func WriteTextfile(path string) error {
	UpdateSystemMetrics()
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
