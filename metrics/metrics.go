// Package metrics exposes Prometheus instrumentation for the bridge ingest
// server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the capture bridge.
type Metrics struct {
	// Ingest metrics
	SamplesIngested prometheus.Counter
	ChunksEmitted   prometheus.Counter
	IngestErrors    prometheus.Counter
	ActiveSources   prometheus.Gauge

	// Artifact metrics
	ArtifactsWritten prometheus.Counter
	ArtifactBytes    prometheus.Counter
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide metrics set, registering it on first use.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = &Metrics{
			SamplesIngested: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dictate_samples_ingested_total",
				Help: "Total number of raw audio samples received by the bridge",
			}),
			ChunksEmitted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dictate_chunks_emitted_total",
				Help: "Total number of PCM chunks emitted by the bridge",
			}),
			IngestErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dictate_ingest_errors_total",
				Help: "Total number of bridge ingest read or decode errors",
			}),
			ActiveSources: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "dictate_active_sources",
				Help: "Current number of connected bridge audio sources",
			}),
			ArtifactsWritten: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dictate_artifacts_written_total",
				Help: "Total number of WAV artifacts assembled at capture stop",
			}),
			ArtifactBytes: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dictate_artifact_bytes_total",
				Help: "Total bytes of WAV artifact data written",
			}),
		}
	})
	return defaultMetrics
}
