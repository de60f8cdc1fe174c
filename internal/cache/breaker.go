package cache

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the store circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the store breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerStore decorates a backend with a circuit breaker so a misbehaving
// key-value store degrades to fast misses instead of stalling every read.
// An open circuit surfaces as a cache error, which callers already treat as
// fallthrough to the source of truth.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps a backend with a circuit breaker.
// When the inner backend is tag-capable the wrapper stays tag-capable, so
// capability selection in NewTreeStore still sees the real backend's powers.
func NewBreakerStore(inner Store, config BreakerConfig, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Cache store circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	base := &BreakerStore{inner: inner, cb: cb}
	if tagged, ok := inner.(TagCapable); ok {
		return &taggedBreakerStore{BreakerStore: base, tagged: tagged}
	}
	if flat, ok := inner.(PatternCapable); ok {
		return &patternBreakerStore{BreakerStore: base, flat: flat}
	}
	return base
}

// Get fetches through the breaker
func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	type result struct {
		value []byte
		found bool
	}
	out, err := s.cb.Execute(func() (any, error) {
		value, found, err := s.inner.Get(ctx, key)
		return result{value, found}, err
	})
	if err != nil {
		return nil, false, err
	}
	res := out.(result)
	return res.value, res.found, nil
}

// Set writes through the breaker
func (s *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.inner.Set(ctx, key, value, ttl)
	})
	return err
}

// Delete removes through the breaker
func (s *BreakerStore) Delete(ctx context.Context, key string) (bool, error) {
	out, err := s.cb.Execute(func() (any, error) {
		removed, err := s.inner.Delete(ctx, key)
		return removed, err
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

type taggedBreakerStore struct {
	*BreakerStore
	tagged TagCapable
}

func (s *taggedBreakerStore) SetTagged(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.tagged.SetTagged(ctx, key, value, ttl, tags...)
	})
	return err
}

func (s *taggedBreakerStore) DeleteTag(ctx context.Context, tag string) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.tagged.DeleteTag(ctx, tag)
	})
	return err
}

type patternBreakerStore struct {
	*BreakerStore
	flat PatternCapable
}

func (s *patternBreakerStore) Clear(ctx context.Context, pattern string) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.flat.Clear(ctx, pattern)
	})
	return err
}
