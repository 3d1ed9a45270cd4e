package completion

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited holds every request until the token bucket admits it.
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

// NewRateLimited allows requestsPerSecond on average with bursts of burst.
// A non-positive rate disables limiting.
func NewRateLimited(next Completer, requestsPerSecond float64, burst int) *RateLimited {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) Complete(ctx context.Context, request Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &PromptError{Kind: KindTransport, Err: err}
	}
	return r.next.Complete(ctx, request)
}
