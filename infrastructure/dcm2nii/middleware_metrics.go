package dcm2nii

import (
	"context"
	"errors"
	"time"

	"github.com/dcmio/dcmflow/internal/ports"
)

// metricsConverter implements conversion metrics collection.
// This provides observability into invocation latency, failure modes,
// and produced artifact counts for operational monitoring.
type metricsConverter struct {
	next      ports.Converter
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that collects conversion metrics.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next ports.Converter) ports.Converter {
		return &metricsConverter{
			next:      next,
			collector: collector,
		}
	}
}

// Convert executes the request while collecting latency, status, and
// artifact count metrics.
func (m *metricsConverter) Convert(ctx context.Context, req ports.ConversionRequest) (*ports.ConversionResult, error) {
	start := time.Now()
	result, err := m.next.Convert(ctx, req)

	labels := map[string]string{"status": "success"}
	if err != nil {
		var convErr *ConversionError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			labels["status"] = "timeout"
		case errors.As(err, &convErr):
			labels["status"] = "tool_error"
		default:
			labels["status"] = "error"
		}
	}

	if m.collector != nil {
		m.collector.RecordHistogram("conversion_latency_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("conversions_total", 1, labels)

		if err == nil {
			m.collector.RecordCounter("converted_volumes_total",
				float64(len(result.ConvertedFiles)), labels)
		}
	}

	return result, err
}
