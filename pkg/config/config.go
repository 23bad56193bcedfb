package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/openspot/matching-core/pkg/postgresql"
	"github.com/openspot/matching-core/pkg/redis"
)

// MustLoad loads the configuration from environment variables and .env file.
func MustLoad[T any](cfg T) {
	_ = godotenv.Load() // Load environment variables from .env file

	env.Must(cfg, env.Parse(cfg))
}

// Load loads the configuration from environment variables and .env file.
func Load[T any](cfg T) error {
	_ = godotenv.Load() // .env file is optional

	if err := env.Parse(cfg); err != nil {
		return err
	}

	return nil
}

// Config holds the configuration for the matching core.
type Config struct {
	// Instrument is the single trading pair this engine serves, e.g. BTC-USD.
	Instrument string `env:"INSTRUMENT" envDefault:"BTC-USD"`

	Engine EngineConfig      `envPrefix:"ENGINE_"`
	Kafka  KafkaConfig       `envPrefix:"KAFKA_"`
	Redis  redis.Config      `envPrefix:"REDIS_"`
	PG     postgresql.Config `envPrefix:"PG_"`
}

// EngineConfig holds the matching engine tuning knobs.
type EngineConfig struct {
	// MatchEpsilon is the quantity below which a remainder counts as fully
	// filled. Decimal arithmetic is exact, so zero is a safe default.
	MatchEpsilon decimal.Decimal `env:"MATCH_EPSILON" envDefault:"0"`

	// EmptyBookMarketPolicy decides what happens to a market order that finds
	// no liquidity at all: "partial" closes it with whatever filled, "reject"
	// rejects it outright when nothing traded.
	EmptyBookMarketPolicy string `env:"EMPTY_BOOK_MARKET_POLICY" envDefault:"partial"`

	// QueueConcurrency is the number of job consumers. The book is owned by a
	// single goroutine, so boot refuses any value other than 1.
	QueueConcurrency int `env:"QUEUE_CONCURRENCY" envDefault:"1"`

	// IdempotencyTTLSeconds is how long a submission claim stays reserved.
	IdempotencyTTLSeconds int `env:"IDEMPOTENCY_TTL_SECONDS" envDefault:"86400"`

	// PriceLevelsDefault is the default number of price levels returned per side.
	PriceLevelsDefault int `env:"PRICE_LEVELS_DEFAULT" envDefault:"20"`

	// RecentTradesDefault is the default number of trades returned by the tape.
	RecentTradesDefault int `env:"RECENT_TRADES_DEFAULT" envDefault:"50"`

	SnapshotInterval    time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"30s"`
	SnapshotOffsetDelta int64         `env:"SNAPSHOT_OFFSET_DELTA" envDefault:"100"`
}

// IdempotencyTTL returns the claim TTL as a duration.
func (c EngineConfig) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLSeconds) * time.Second
}

// KafkaConfig holds the configuration for the job stream consumer and producer.
type KafkaConfig struct {
	Topic     string   `env:"TOPIC,required"`
	Brokers   []string `env:"BROKERS,required"`
	Partition int      `env:"PARTITION" envDefault:"0"`
}

// EmptyBookMarketPolicy values accepted by EngineConfig.
const (
	EmptyBookPolicyPartial = "partial"
	EmptyBookPolicyReject  = "reject"
)
