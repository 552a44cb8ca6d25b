package ports

import (
	"context"
	"time"

	"github.com/dcmio/dcmflow/internal/domain"
)

// ConversionRequest describes one conversion invocation: a single DICOM
// series directory plus the scalar configuration fixed for the run.
type ConversionRequest struct {
	// SourceDir is the directory containing the DICOM series to convert.
	SourceDir string

	// OutputDir is the destination for all artifacts of this item.
	// The caller guarantees it is collision-free across concurrent items.
	OutputDir string

	// DcmTags lists the DICOM tags whose values are propagated into the
	// converted volume metadata.
	DcmTags []domain.DcmTag

	// AdditionalInformation carries free metadata items merged into the
	// volume metadata alongside the extracted tags.
	AdditionalInformation map[string]string

	// DateInFilename embeds the acquisition date in generated filenames.
	DateInFilename bool

	// Reorient requests reorientation to the nearest orthogonal.
	Reorient bool

	// ReorientAndCrop requests reoriented and cropped variants.
	ReorientAndCrop bool
}

// ConversionResult is the fixed multi-output contract of the external
// converter for one item. Volume outputs are multi-valued: a multi-echo
// or diffusion series legitimately produces more than one file.
type ConversionResult struct {
	// ConvertedFiles are the converted volume paths.
	ConvertedFiles []string

	// ReorientedFiles are the reoriented volume paths.
	ReorientedFiles []string

	// ReorientedAndCroppedFiles are the reoriented-and-cropped volume paths.
	ReorientedAndCroppedFiles []string

	// FilledConvertedFiles are the metadata-filled volume paths.
	FilledConvertedFiles []string

	// BVals are the diffusion b-value table paths.
	BVals []string

	// BVecs are the diffusion b-vector table paths.
	BVecs []string

	// SnapFile is the snapshot/QC image path, empty when snapshotting
	// is not configured.
	SnapFile string
}

// Converter is the external collaborator consumed by the conversion
// unit: an opaque tool capable of producing all declared outputs from
// one source directory. Implementations wrap the actual conversion
// binary; tests substitute a deterministic fake so the wiring engine's
// correctness is decoupled from the real tool's availability.
//
// The converter writes artifacts under the request's output directory;
// the result carries locations of those artifacts, not their contents.
// Treat the converter as a process-level resource: it is not guaranteed
// to tolerate unbounded concurrent invocation.
type Converter interface {
	// Convert runs one conversion. It returns an error when the
	// external tool fails for this item; the error applies to the item
	// only, never to the whole batch.
	Convert(ctx context.Context, req ConversionRequest) (*ConversionResult, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like item successes, failures, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like driving-list length.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like per-item durations.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
