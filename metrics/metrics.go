package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "drivesync"

// Metrics records sync activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	filesTotal      *prometheus.CounterVec
	cyclesTotal     *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	logUploadsTotal *prometheus.CounterVec
	lastCycle       prometheus.Gauge
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		filesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files processed by sync cycles, by outcome.",
		}, []string{"status"}),
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed sync cycles, by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a sync cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		logUploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_uploads_total",
			Help:      "Log file uploads to Drive, by result.",
		}, []string{"result"}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last sync cycle finished.",
		}),
	}

	for _, c := range []prometheus.Collector{m.filesTotal, m.cyclesTotal, m.cycleDuration, m.logUploadsTotal, m.lastCycle} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) RecordFile(status string) {
	if m == nil {
		return
	}
	m.filesTotal.WithLabelValues(status).Inc()
}

// RecordCycle marks a cycle as failed when any file in it failed or the
// listing itself failed.
func (m *Metrics) RecordCycle(duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	result := "success"
	if failed {
		result = "error"
	}
	m.cyclesTotal.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(duration.Seconds())
	m.lastCycle.SetToCurrentTime()
}

func (m *Metrics) RecordLogUpload(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.logUploadsTotal.WithLabelValues(result).Inc()
}
