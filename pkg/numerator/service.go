// Package numerator issues human-readable sequential numbers such as
// shipment tracking numbers (TRK-2026-00001).
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict reserves every number in the store.
	// Numbers are gapless when the caller's transaction commits.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges and hands them out from memory.
	// A restart may leave gaps.
	StrategyCached
)

const defaultRangeSize = 50

// Options configuration for number generation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() Options {
	return Options{Strategy: StrategyStrict}
}

// Store persists the last issued value per key.
type Store interface {
	// Reserve advances key by n and returns the new last value.
	Reserve(ctx context.Context, key string, n int64) (int64, error)
	// Set overwrites the last issued value of key.
	Set(ctx context.Context, key string, value int64) error
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "TRK")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns a yearly sequence: PREFIX-YYYY-00001.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

type cachedRange struct {
	current int64
	max     int64
}

// Service provides numbering on top of a Store.
type Service struct {
	store Store
	opts  Options
	now   func() time.Time

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

// New creates a numerator over store.
func New(store Store, opts Options) *Service {
	return &Service{
		store:  store,
		opts:   opts,
		now:    time.Now,
		ranges: make(map[string]*cachedRange),
	}
}

// GetNextNumber generates the next number for cfg in period.
func (s *Service) GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error) {
	if s == nil || s.store == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	key := buildKey(cfg, period)
	var (
		num int64
		err error
	)
	switch s.opts.Strategy {
	case StrategyCached:
		num, err = s.getNextCached(ctx, key)
	default:
		num, err = s.store.Reserve(ctx, key, 1)
	}
	if err != nil {
		return "", fmt.Errorf("next %s: %w", key, err)
	}
	return formatNumber(cfg, period, num), nil
}

// getNextCached hands out a value from memory, reserving a new range when
// the current one is exhausted.
func (s *Service) getNextCached(ctx context.Context, key string) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		size := s.opts.RangeSize
		if size <= 0 {
			size = defaultRangeSize
		}
		newMax, err := s.store.Reserve(ctx, key, size)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}
		// The reserved range is (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber makes value the next number issued for cfg in period.
func (s *Service) SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error {
	key := buildKey(cfg, period)
	if err := s.store.Set(ctx, key, value-1); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	s.cacheMu.Lock()
	delete(s.ranges, key)
	s.cacheMu.Unlock()
	return nil
}

// Generator binds cfg to the current time. The result fits
// orders.Config.TrackingNumber.
func (s *Service) Generator(cfg Config) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return s.GetNextNumber(ctx, cfg, s.now())
	}
}

func buildKey(cfg Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

func formatNumber(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// ParseNumber extracts numeric part from formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	var num int64
	patterns := []string{
		"%*[^-]-%*d-%d",
		"%*[^-]-%d",
	}

	for _, pattern := range patterns {
		if _, err := fmt.Sscanf(formatted, pattern, &num); err == nil {
			return num
		}
	}

	return -1
}
