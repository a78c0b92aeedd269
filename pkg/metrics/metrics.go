// Package metrics exposes the outcome of a backup run as Prometheus
// metrics, written to a file for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sdejongh/backup2ftp/pkg/models"
)

const namespace = "backup2ftp"

var statuses = []models.RunStatus{
	models.StatusSuccess,
	models.StatusPartial,
	models.StatusFailed,
	models.StatusCancelled,
}

// Recorder holds the metrics of the last run in its own registry
type Recorder struct {
	registry *prometheus.Registry

	runTimestamp   prometheus.Gauge
	runDuration    prometheus.Gauge
	runStatus      *prometheus.GaugeVec
	items          *prometheus.GaugeVec
	bytes          prometheus.Gauge
	candidates     prometheus.Gauge
	uploadDuration prometheus.Histogram
}

// NewRecorder creates a Recorder
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last backup run finished",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last backup run",
		}),
		runStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_status",
			Help:      "1 for the status of the last backup run, 0 otherwise",
		}, []string{"status"}),
		items: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_items",
			Help:      "Candidates of the last backup run by outcome",
		}, []string{"outcome"}),
		bytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_bytes_transferred",
			Help:      "Bytes uploaded by the last backup run",
		}),
		candidates: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_candidates",
			Help:      "Upload candidates of the last backup run",
		}),
		uploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time spent per candidate in the last backup run",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
	}
}

// Observe records report
func (r *Recorder) Observe(report *models.RunReport) {
	r.runTimestamp.Set(float64(report.EndTime.Unix()))
	r.runDuration.Set(report.Duration.Seconds())

	for _, s := range statuses {
		v := 0.0
		if s == report.Status {
			v = 1
		}
		r.runStatus.WithLabelValues(string(s)).Set(v)
	}

	r.items.WithLabelValues("uploaded").Set(float64(report.Stats.Uploaded))
	r.items.WithLabelValues("replaced").Set(float64(report.Stats.Replaced))
	r.items.WithLabelValues("skipped").Set(float64(report.Stats.Skipped))
	r.items.WithLabelValues("failed").Set(float64(report.Stats.Failed))
	r.bytes.Set(float64(report.Stats.BytesTransferred))
	r.candidates.Set(float64(report.Stats.Candidates))

	for _, item := range report.Items {
		r.uploadDuration.Observe(item.Duration.Seconds())
	}
}

// Gatherer returns the registry holding the run metrics
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the metrics to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
