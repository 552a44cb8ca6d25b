// Package middleware provides cross-cutting concerns for the conversion
// pipeline engine.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dcmio/dcmflow/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It provides real-time monitoring of item throughput,
// conversion latency, and batch composition for the pipeline engine.
type PrometheusMetrics struct {
	itemsTotal        *prometheus.CounterVec
	itemDuration      *prometheus.HistogramVec
	conversionLatency *prometheus.HistogramVec
	runLatency        *prometheus.HistogramVec
	operationCounter  *prometheus.CounterVec
	systemGauges      *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and
// registers all required metrics in the given registerer. Pass
// prometheus.DefaultRegisterer for the global registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		itemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_items_total",
				Help: "Total number of driving-list items processed, by outcome.",
			},
			[]string{"pipeline", "unit", "status"},
		),
		itemDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_item_duration_seconds",
				Help:    "Per-item processing time, including the external tool.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"pipeline", "unit", "status"},
		),
		conversionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conversion_latency_seconds",
				Help:    "External tool invocation time, by outcome.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"status"},
		),
		runLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_run_duration_seconds",
				Help:    "Whole-batch execution time per pipeline run.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"pipeline", "operation"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_operations_total",
				Help: "Total number of engine operations, by name and status.",
			},
			[]string{"operation", "status"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_state",
				Help: "Current engine state values, such as driving-list length.",
			},
			[]string{"pipeline", "metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// run-level latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.runLatency.WithLabelValues(
		labelOr(labels, "pipeline"), operation,
	).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by
// incrementing Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "pipeline_items_total":
		pm.itemsTotal.WithLabelValues(
			labelOr(labels, "pipeline"),
			labelOr(labels, "unit"),
			labelOr(labels, "status"),
		).Add(value)
	case "conversions_total", "converted_volumes_total":
		pm.operationCounter.WithLabelValues(metric, labelOr(labels, "status")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, "success").Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.systemGauges.WithLabelValues(labelOr(labels, "pipeline"), metric).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by
// recording values in the matching Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "pipeline_item_duration_seconds":
		pm.itemDuration.WithLabelValues(
			labelOr(labels, "pipeline"),
			labelOr(labels, "unit"),
			labelOr(labels, "status"),
		).Observe(value)
	case "conversion_latency_seconds":
		pm.conversionLatency.WithLabelValues(labelOr(labels, "status")).Observe(value)
	default:
		pm.itemDuration.WithLabelValues(
			labelOr(labels, "pipeline"), metric, labelOr(labels, "status"),
		).Observe(value)
	}
}

func labelOr(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok {
		return v
	}
	return "unknown"
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
