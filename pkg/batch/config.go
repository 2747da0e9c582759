package batch

import (
	"fmt"
	"time"
)

// Strategy selects a batching profile. The batch size is fully derived
// from the strategy and is never set independently.
type Strategy string

const (
	// StrategyStandard matches the API's post-lookup limit of 25 URIs per call.
	StrategyStandard Strategy = "standard"
	// StrategyConservative trades throughput for headroom under tight rate limits.
	StrategyConservative Strategy = "conservative"
	// StrategyLargePagination is for endpoints that page 100 records at a time.
	StrategyLargePagination Strategy = "large_pagination"
	// StrategySmall is for expensive per-item work.
	StrategySmall Strategy = "small"
)

// Config holds batch processing configuration. Construct via NewConfig;
// the zero value does not validate.
type Config struct {
	Strategy             Strategy
	BatchSize            int
	DelayBetweenBatches  time.Duration
	MaxRetries           int
	TimeoutPerBatch      time.Duration
	MaxConcurrentBatches int
}

// NewConfig returns the configuration derived from the given strategy.
func NewConfig(strategy Strategy) (Config, error) {
	switch strategy {
	case StrategyStandard:
		return Config{
			Strategy:             StrategyStandard,
			BatchSize:            25,
			DelayBetweenBatches:  1 * time.Second,
			MaxRetries:           3,
			TimeoutPerBatch:      30 * time.Second,
			MaxConcurrentBatches: 1,
		}, nil
	case StrategyConservative:
		return Config{
			Strategy:             StrategyConservative,
			BatchSize:            20,
			DelayBetweenBatches:  2 * time.Second,
			MaxRetries:           5,
			TimeoutPerBatch:      30 * time.Second,
			MaxConcurrentBatches: 1,
		}, nil
	case StrategyLargePagination:
		return Config{
			Strategy:             StrategyLargePagination,
			BatchSize:            100,
			DelayBetweenBatches:  1 * time.Second,
			MaxRetries:           3,
			TimeoutPerBatch:      60 * time.Second,
			MaxConcurrentBatches: 1,
		}, nil
	case StrategySmall:
		return Config{
			Strategy:             StrategySmall,
			BatchSize:            10,
			DelayBetweenBatches:  500 * time.Millisecond,
			MaxRetries:           3,
			TimeoutPerBatch:      15 * time.Second,
			MaxConcurrentBatches: 1,
		}, nil
	default:
		return Config{}, fmt.Errorf("unknown batch strategy: %q", strategy)
	}
}

// MustConfig is NewConfig that panics on an unknown strategy. Intended
// for wiring well-known strategies at startup.
func MustConfig(strategy Strategy) Config {
	config, err := NewConfig(strategy)
	if err != nil {
		panic(err)
	}
	return config
}

// Validate checks invariants that NewConfig guarantees by construction.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive, got %d", c.MaxRetries)
	}
	if c.MaxConcurrentBatches <= 0 {
		return fmt.Errorf("max concurrent batches must be positive, got %d", c.MaxConcurrentBatches)
	}
	if c.DelayBetweenBatches < 0 {
		return fmt.Errorf("delay between batches must not be negative, got %s", c.DelayBetweenBatches)
	}
	return nil
}
