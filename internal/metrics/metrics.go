// Package metrics exposes the server's Prometheus instrumentation.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Session lifecycle counters
	ConnectsStarted   prometheus.Counter
	ConnectsSucceeded prometheus.Counter
	ConnectsFailed    prometheus.Counter
	ConnectsTimedOut  prometheus.Counter
	ConnectsDeduped   prometheus.Counter

	// Background persistence after ready
	PersistsSucceeded prometheus.Counter
	PersistsFailed    prometheus.Counter

	// Archive runs
	ArchiveRuns           prometheus.Counter
	ArchiveChatsFailed    prometheus.Counter
	ArchiveMessagesSaved  prometheus.Counter
	ArchiveBatchFallbacks prometheus.Counter

	EventsPublished prometheus.Counter

	// Histograms (seconds)
	InitializeDuration prometheus.Observer
	PersistDuration    prometheus.Observer
	ArchiveDuration    prometheus.Observer

	// Gauges
	ActiveHandles prometheus.Gauge
	SSEClients    prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ConnectsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "chatvault_connects_started_total", Help: "Session initializations started"})
		ConnectsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "chatvault_connects_succeeded_total", Help: "Session initializations that reached ready"})
		ConnectsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "chatvault_connects_failed_total", Help: "Session initializations that failed"})
		ConnectsTimedOut = promauto.NewCounter(prometheus.CounterOpts{Name: "chatvault_connects_timed_out_total", Help: "Session initializations that hit the init timeout"})
		ConnectsDeduped = promauto.NewCounter(prometheus.CounterOpts{Name: "chatvault_connects_deduped_total", Help: "Initialize calls that joined an in-flight attempt"})
		PersistsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "chatvault_persists_succeeded_total", Help: "Post-ready session persists that completed"})
		PersistsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "chatvault_persists_failed_total", Help: "Post-ready session persists with at least one failed write"})
		ArchiveRuns = promauto.NewCounter(prometheus.CounterOpts{Name: "chatvault_archive_runs_total", Help: "Archive runs started"})
		ArchiveChatsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "chatvault_archive_chats_failed_total", Help: "Chats that failed during an archive run"})
		ArchiveMessagesSaved = promauto.NewCounter(prometheus.CounterOpts{Name: "chatvault_archive_messages_saved_total", Help: "Messages saved by archive runs"})
		ArchiveBatchFallbacks = promauto.NewCounter(prometheus.CounterOpts{Name: "chatvault_archive_batch_fallbacks_total", Help: "Bulk batches that fell back to per-record writes"})
		EventsPublished = promauto.NewCounter(prometheus.CounterOpts{Name: "chatvault_events_published_total", Help: "Events published to the push channel"})
		InitializeDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatvault_initialize_duration_seconds", Help: "Initialize duration seconds", Buckets: prometheus.DefBuckets})
		PersistDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatvault_persist_duration_seconds", Help: "Post-ready persist duration seconds", Buckets: prometheus.DefBuckets})
		ArchiveDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatvault_archive_duration_seconds", Help: "Archive run duration seconds", Buckets: []float64{1, 5, 15, 60, 300, 900, 1800}})
		ActiveHandles = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatvault_active_handles", Help: "Live client handles in the registry"})
		SSEClients = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatvault_sse_clients", Help: "Connected SSE subscribers"})
	})
}

// TimeSince records the elapsed time since start into obs if metrics are
// initialized.
func TimeSince(obs prometheus.Observer, start time.Time) {
	if obs != nil {
		obs.Observe(time.Since(start).Seconds())
	}
}
