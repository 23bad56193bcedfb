package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openspot/matching-core/pkg/config"
	"github.com/openspot/matching-core/pkg/errors"
)

// Options tunes the engine independently of the environment config, so
// tests can run with tight intervals.
type Options struct {
	// MatchEpsilon is the remainder below which an order counts as fully
	// filled. Decimal arithmetic is exact, so zero is the safe default.
	MatchEpsilon decimal.Decimal

	// EmptyBookMarketPolicy picks the terminal status of a market order
	// that never traded: config.EmptyBookPolicyPartial closes it
	// partially_filled with whatever executed, config.EmptyBookPolicyReject
	// rejects it.
	EmptyBookMarketPolicy string

	SnapshotInterval    time.Duration
	SnapshotOffsetDelta int64

	// RetryBaseDelay doubles per attempt up to RetryMaxDelay when a job
	// hits a retryable fault.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// DefaultEngineOptions mirrors the configuration defaults.
func DefaultEngineOptions() *Options {
	return &Options{
		MatchEpsilon:          decimal.Zero,
		EmptyBookMarketPolicy: config.EmptyBookPolicyPartial,
		SnapshotInterval:      30 * time.Second,
		SnapshotOffsetDelta:   100,
		RetryBaseDelay:        100 * time.Millisecond,
		RetryMaxDelay:         5 * time.Second,
	}
}

// OptionsFromConfig maps the engine env config onto Options.
func OptionsFromConfig(cfg *config.Config) (*Options, error) {
	switch cfg.Engine.EmptyBookMarketPolicy {
	case config.EmptyBookPolicyPartial, config.EmptyBookPolicyReject:
	default:
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("unknown empty book market policy %q", cfg.Engine.EmptyBookMarketPolicy),
			string(errors.ConfigError),
			"empty_book_market_policy",
		)
	}

	if cfg.Engine.MatchEpsilon.IsNegative() {
		return nil, errors.NewErrorDetails(
			"match epsilon must not be negative",
			string(errors.ConfigError),
			"match_epsilon",
		)
	}

	options := DefaultEngineOptions()
	options.MatchEpsilon = cfg.Engine.MatchEpsilon
	options.EmptyBookMarketPolicy = cfg.Engine.EmptyBookMarketPolicy
	options.SnapshotInterval = cfg.Engine.SnapshotInterval
	options.SnapshotOffsetDelta = cfg.Engine.SnapshotOffsetDelta
	return options, nil
}
