package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a Provider so that all runs sharing the same
// limiter — e.g. every concurrent case in a bench run — stay within one
// provider-wide request budget, rather than each run pacing itself in
// isolation and collectively bursting past the account's rate limit.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps inner with a token-bucket limiter allowing
// ratePerSecond requests per second, bursting up to burst.
func NewRateLimitedProvider(inner Provider, ratePerSecond float64, burst int) *RateLimitedProvider {
	return &RateLimitedProvider{inner: inner, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (p *RateLimitedProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Chat(ctx, req)
}
