package dcm2nii

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dcmio/dcmflow/internal/ports"
)

// tracedConverter implements distributed tracing for conversion
// observability. Each invocation gets its own span carrying the source
// directory and the produced artifact counts.
type tracedConverter struct {
	next   ports.Converter
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that adds OpenTelemetry spans to
// conversion requests.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)

	return func(next ports.Converter) ports.Converter {
		return &tracedConverter{
			next:   next,
			tracer: tracer,
		}
	}
}

// Convert executes the request within a trace span.
func (t *tracedConverter) Convert(ctx context.Context, req ports.ConversionRequest) (*ports.ConversionResult, error) {
	ctx, span := t.tracer.Start(ctx, "dcm2nii.Convert",
		trace.WithAttributes(
			attribute.String("conversion.source_dir", req.SourceDir),
			attribute.String("conversion.output_dir", req.OutputDir),
			attribute.Bool("conversion.reorient", req.Reorient),
			attribute.Bool("conversion.reorient_and_crop", req.ReorientAndCrop),
		),
	)
	defer span.End()

	result, err := t.next.Convert(ctx, req)
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	span.SetAttributes(
		attribute.Int("conversion.converted_files", len(result.ConvertedFiles)),
		attribute.Int("conversion.reoriented_files", len(result.ReorientedFiles)),
		attribute.Int("conversion.bvals", len(result.BVals)),
	)
	return result, err
}
