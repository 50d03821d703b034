// Package search wraps web-search providers behind a gateway that never
// aborts an enrichment run: provider failures come back as empty results
// plus an error value the caller can log.
package search

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/resilience"
)

// Provider is a single web-search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// Outcome is what the gateway hands back for one query. Err is set when the
// provider failed; Results is then empty.
type Outcome struct {
	Results []model.SearchResult
	Err     error
}

// Payload wraps the results as a SearchPayload.
func (o Outcome) Payload() model.SearchPayload {
	return model.ResultsPayload(o.Results)
}

// GatewayConfig tunes timeouts, retries and throttling.
type GatewayConfig struct {
	Timeout    time.Duration
	MaxResults int
	Retry      resilience.RetryConfig
	Breaker    resilience.CircuitBreakerConfig
	// RateLimit is requests per second across all runs. Zero disables it.
	RateLimit float64
}

// DefaultGatewayConfig returns a 15s timeout, two attempts and no rate limit.
func DefaultGatewayConfig() GatewayConfig {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2
	return GatewayConfig{
		Timeout: 15 * time.Second,
		Retry:   retry,
		Breaker: resilience.DefaultCircuitBreakerConfig(),
	}
}

// Gateway is safe for concurrent use by many runs.
type Gateway struct {
	provider Provider
	cfg      GatewayConfig
	breaker  *resilience.CircuitBreaker
	limiter  *rate.Limiter
}

// NewGateway wraps provider.
func NewGateway(provider Provider, cfg GatewayConfig) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGatewayConfig().Timeout
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger(provider.Name(), "search")
	}
	breakerCfg := cfg.Breaker
	if breakerCfg.OnStateChange == nil {
		name := provider.Name()
		breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("search: circuit state changed",
				zap.String("provider", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}
	g := &Gateway{
		provider: provider,
		cfg:      cfg,
		breaker:  resilience.NewCircuitBreaker(breakerCfg),
	}
	if cfg.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(int(cfg.RateLimit), 1))
	}
	return g
}

// Provider returns the wrapped provider's name.
func (g *Gateway) Provider() string { return g.provider.Name() }

// Search runs query against the provider. It does not return an error.
func (g *Gateway) Search(ctx context.Context, query string) Outcome {
	log := zap.L().With(zap.String("provider", g.provider.Name()), zap.String("query", query))

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			log.Warn("search: rate limiter wait aborted", zap.Error(err))
			return Outcome{Results: []model.SearchResult{}, Err: err}
		}
	}

	results, err := resilience.DoVal(ctx, g.cfg.Retry, func(ctx context.Context) ([]model.SearchResult, error) {
		return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) ([]model.SearchResult, error) {
			callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
			defer cancel()
			return g.provider.Search(callCtx, query)
		})
	})
	if err != nil {
		log.Warn("search: provider failed, continuing with empty results", zap.Error(err))
		return Outcome{Results: []model.SearchResult{}, Err: err}
	}

	if g.cfg.MaxResults > 0 && len(results) > g.cfg.MaxResults {
		results = results[:g.cfg.MaxResults]
	}
	if results == nil {
		results = []model.SearchResult{}
	}
	log.Debug("search: results", zap.Int("count", len(results)))
	return Outcome{Results: results}
}
