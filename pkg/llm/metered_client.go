package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MeteredClient wraps an LLMClient with the daily token budget and the
// shared circuit breaker, and logs each call with the context labels.
type MeteredClient struct {
	inner   LLMClient
	meter   UsageMeter
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewMeteredClient wraps inner. meter and breaker may be nil.
func NewMeteredClient(inner LLMClient, meter UsageMeter, breaker *CircuitBreaker, logger *zap.Logger) *MeteredClient {
	return &MeteredClient{
		inner:   inner,
		meter:   meter,
		breaker: breaker,
		logger:  logger.Named("llm-usage"),
	}
}

// GenerateResponse checks the budget, calls the provider and records tokens spent.
func (c *MeteredClient) GenerateResponse(ctx context.Context, req Request) (*Response, error) {
	if c.meter != nil {
		if err := c.meter.CheckBudget(ctx); err != nil {
			return nil, err
		}
	}
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.inner.GenerateResponse(ctx, req)

	fields := []zap.Field{
		zap.String("provider", c.inner.Provider()),
		zap.Duration("elapsed", time.Since(start)),
	}
	for k, v := range Labels(ctx) {
		fields = append(fields, zap.String(k, v))
	}

	if err != nil {
		if c.breaker != nil && IsRetryable(err) {
			c.breaker.RecordFailure()
		}
		c.logger.Warn("LLM call failed", append(fields, zap.Error(err))...)
		return nil, err
	}

	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	if c.meter != nil {
		c.meter.RecordUsage(ctx, resp.TotalTokens)
	}

	c.logger.Debug("LLM call", append(fields,
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.TotalTokens))...)

	return resp, nil
}

// GetModel returns the inner client's model.
func (c *MeteredClient) GetModel() string {
	return c.inner.GetModel()
}

// Provider returns the inner client's provider.
func (c *MeteredClient) Provider() string {
	return c.inner.Provider()
}

var _ LLMClient = (*MeteredClient)(nil)
