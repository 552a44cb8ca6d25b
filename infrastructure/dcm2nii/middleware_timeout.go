package dcm2nii

import (
	"context"
	"time"

	"github.com/dcmio/dcmflow/internal/ports"
)

// timeoutConverter implements per-request timeout functionality.
// This ensures a stuck tool invocation fails its own item instead of
// stalling the whole batch.
type timeoutConverter struct {
	next    ports.Converter
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that enforces a per-request
// timeout. An expired deadline surfaces as a context error for that
// item only; the engine records it against the index and moves on.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next ports.Converter) ports.Converter {
		return &timeoutConverter{
			next:    next,
			timeout: timeout,
		}
	}
}

// Convert executes the request with a timeout context.
func (t *timeoutConverter) Convert(ctx context.Context, req ports.ConversionRequest) (*ports.ConversionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Convert(ctx, req)
}
