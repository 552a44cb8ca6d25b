package dcm2nii

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/dcmio/dcmflow/internal/ports"
)

// rateLimitedConverter implements rate limiting using a token bucket
// algorithm. The external tool is disk and memory hungry; pacing
// invocations keeps a parallel run from thrashing the host.
type rateLimitedConverter struct {
	next    ports.Converter
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that enforces rate limiting
// using a token bucket algorithm. The limit parameter sets invocations
// per second, while burst allows temporary spikes above the sustained
// rate.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next ports.Converter) ports.Converter {
		return &rateLimitedConverter{
			next:    next,
			limiter: limiter,
		}
	}
}

// Convert waits for rate limit permission before forwarding the request.
func (r *rateLimitedConverter) Convert(ctx context.Context, req ports.ConversionRequest) (*ports.ConversionResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Convert(ctx, req)
}
