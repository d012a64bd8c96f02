package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ClientFactory creates LLM clients from the effective settings.
type ClientFactory struct {
	configProvider ConfigProvider
	meter          UsageMeter
	breaker        *CircuitBreaker
	recorder       CallRecorder
	logger         *zap.Logger
}

// SetRecorder records every call made by clients this factory creates.
// Pass nil to disable recording.
func (f *ClientFactory) SetRecorder(recorder CallRecorder) {
	f.recorder = recorder
}

// NewClientFactory creates a new factory. meter may be nil.
func NewClientFactory(configProvider ConfigProvider, meter UsageMeter, logger *zap.Logger) *ClientFactory {
	return &ClientFactory{
		configProvider: configProvider,
		meter:          meter,
		breaker:        NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		logger:         logger,
	}
}

// Create resolves the current provider settings and returns a metered client,
// recording calls when a recorder is set.
func (f *ClientFactory) Create(ctx context.Context) (LLMClient, error) {
	cfg, err := f.configProvider.ResolveLLMConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve llm config: %w", err)
	}

	client, err := NewProviderClient(cfg, f.logger)
	if err != nil {
		return nil, err
	}

	if f.recorder != nil {
		client = NewRecordingClient(client, f.recorder)
	}
	return NewMeteredClient(client, f.meter, f.breaker, f.logger), nil
}

// NewProviderClient builds the raw client for cfg.Provider without metering.
func NewProviderClient(cfg *ProviderConfig, logger *zap.Logger) (LLMClient, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		c, err := NewAnthropicClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return c, nil
	case ProviderOpenAI, "":
		c, err := NewClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

var _ LLMClientFactory = (*ClientFactory)(nil)
