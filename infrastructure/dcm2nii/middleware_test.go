package dcm2nii

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcmio/dcmflow/internal/ports"
)

// stubConverter lets middleware tests script the wrapped behavior.
type stubConverter struct {
	result *ports.ConversionResult
	err    error
	block  bool
	calls  int
}

func (s *stubConverter) Convert(ctx context.Context, req ports.ConversionRequest) (*ports.ConversionResult, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.result, s.err
}

func TestTimeoutMiddlewareExpires(t *testing.T) {
	stub := &stubConverter{block: true}
	converter := TimeoutMiddleware(20 * time.Millisecond)(stub)

	_, err := converter.Convert(context.Background(), ports.ConversionRequest{SourceDir: "/data/s1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeoutMiddlewarePassesResult(t *testing.T) {
	want := &ports.ConversionResult{ConvertedFiles: []string{"/out/a.nii.gz"}}
	converter := TimeoutMiddleware(time.Second)(&stubConverter{result: want})

	got, err := converter.Convert(context.Background(), ports.ConversionRequest{SourceDir: "/data/s1"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRateLimitMiddlewareHonorsCancellation(t *testing.T) {
	// Zero sustained rate with an exhausted burst: the second request
	// can never acquire a token and must fail on the context.
	converter := RateLimitMiddleware(0, 1)(&stubConverter{result: &ports.ConversionResult{}})

	_, err := converter.Convert(context.Background(), ports.ConversionRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = converter.Convert(ctx, ports.ConversionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

// recordingCollector captures metric calls for assertions.
type recordingCollector struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string]int
	statuses   []string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		counters:   make(map[string]float64),
		histograms: make(map[string]int),
	}
}

func (r *recordingCollector) RecordLatency(string, time.Duration, map[string]string) {}

func (r *recordingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] += value
	r.statuses = append(r.statuses, labels["status"])
}

func (r *recordingCollector) RecordGauge(string, float64, map[string]string) {}

func (r *recordingCollector) RecordHistogram(metric string, _ float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric]++
}

func TestMetricsMiddlewareRecordsOutcomes(t *testing.T) {
	collector := newRecordingCollector()

	success := MetricsMiddleware(collector)(&stubConverter{
		result: &ports.ConversionResult{ConvertedFiles: []string{"a", "b"}},
	})
	_, err := success.Convert(context.Background(), ports.ConversionRequest{})
	require.NoError(t, err)

	failure := MetricsMiddleware(collector)(&stubConverter{
		err: &ConversionError{Tool: "dcm2nii", ExitCode: 2},
	})
	_, err = failure.Convert(context.Background(), ports.ConversionRequest{})
	require.Error(t, err)

	assert.Equal(t, float64(2), collector.counters["conversions_total"])
	assert.Equal(t, float64(2), collector.counters["converted_volumes_total"])
	assert.Equal(t, 2, collector.histograms["conversion_latency_seconds"])
	assert.Contains(t, collector.statuses, "success")
	assert.Contains(t, collector.statuses, "tool_error")
}

func TestConversionErrorMessage(t *testing.T) {
	err := &ConversionError{
		Tool:     "dcm2nii",
		Args:     []string{"-o", "/out", "/data/s1"},
		ExitCode: 1,
		Stderr:   "no DICOM images found\n",
	}
	assert.Equal(t, "dcm2nii -o /out /data/s1: exit code 1: no DICOM images found", err.Error())

	var target *ConversionError
	assert.True(t, errors.As(err, &target))
}
