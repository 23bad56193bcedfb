package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
	"github.com/openspot/matching-core/internal/infrastructure/postgresql/ledger"
	"github.com/openspot/matching-core/internal/usecase/idempotency"
	"github.com/openspot/matching-core/internal/usecase/intake"
	"github.com/openspot/matching-core/internal/usecase/jobstream"
	"github.com/openspot/matching-core/pkg/config"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
	"github.com/openspot/matching-core/pkg/postgresql"
	"github.com/openspot/matching-core/pkg/redis"
)

// generateSubmission builds one random order. 70% are limits priced around the
// base, the rest are markets; sides split evenly.
func generateSubmission(clients []string, basePrice, priceSpread float64) orderv1.Submission {
	sub := orderv1.Submission{
		IdempotencyKey: uuid.NewString(),
		ClientID:       clients[rand.Intn(len(clients))],
		Side:           orderv1.SideBuy,
		Type:           orderv1.TypeLimit,
	}

	if rand.Float64() < 0.5 {
		sub.Side = orderv1.SideSell
	}
	if rand.Float64() < 0.3 {
		sub.Type = orderv1.TypeMarket
	}

	// Quantity between 0.01 and 10.0, three decimal places.
	qty := 0.01 + rand.Float64()*9.99
	sub.Quantity = decimal.NewFromFloat(qty).Round(3)

	// Market orders carry no price; intake rejects one that does.
	if sub.Type == orderv1.TypeLimit {
		var price float64
		if sub.Side == orderv1.SideBuy {
			price = basePrice - rand.Float64()*priceSpread*0.8
		} else {
			price = basePrice + rand.Float64()*priceSpread*0.8
		}
		if price <= 0 {
			price = basePrice
		}
		sub.Price = decimal.NewNullDecimal(decimal.NewFromFloat(price).Round(1))
	}

	return sub
}

func main() {
	var (
		count       = flag.Int("count", 1000, "Number of orders to submit")
		delay       = flag.Duration("delay", 100*time.Millisecond, "Delay between submissions")
		basePrice   = flag.Float64("base-price", 50000.0, "Base price for limit orders")
		priceSpread = flag.Float64("price-spread", 200.0, "Price spread range")
		clientCount = flag.Int("clients", 25, "Number of distinct client ids to submit from")
		cancelRatio = flag.Float64("cancel-ratio", 0.1, "Fraction of submissions followed by a random cancel")
	)
	flag.Parse()

	ctx := context.Background()

	cfg := &config.Config{}
	if err := config.Load(cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog, err := logger.NewLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	rclient := redis.NewClient(appLog, &cfg.Redis)
	if err := rclient.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rclient.Disconnect(ctx)

	pgClient, err := postgresql.NewClient(ctx, cfg.PG)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()

	writer := jobstream.NewWriter(cfg.Kafka, appLog)
	defer writer.Close()

	gate := idempotency.NewGate(rclient, cfg.Engine.IdempotencyTTL(), appLog)
	ledgerRepo := ledger.NewRepository(pgClient, appLog)
	svc := intake.NewService(ledgerRepo, gate, writer, cfg.Instrument, appLog)

	clients := make([]string, *clientCount)
	for i := range clients {
		clients[i] = uuid.NewString()
	}

	log.Printf("Submitting %d orders to %s (topic %s, delay %v)",
		*count, cfg.Instrument, cfg.Kafka.Topic, *delay)

	var (
		accepted   []string
		rejected   int
		limits     int
		markets    int
		buys       int
		sells      int
		cancels    int
		cancelErrs int
	)

	for i := 0; i < *count; i++ {
		sub := generateSubmission(clients, *basePrice, *priceSpread)

		order, err := svc.Submit(ctx, sub)
		if err != nil {
			rejected++
			log.Printf("Submission %d/%d rejected: %v", i+1, *count, err)
		} else {
			accepted = append(accepted, order.ID)
			if order.Type == orderv1.TypeMarket {
				markets++
			} else {
				limits++
			}
			if order.Side == orderv1.SideBuy {
				buys++
			} else {
				sells++
			}
		}

		// Sprinkle cancels over earlier orders. Conflicts are expected: the
		// engine may already have filled whatever we picked.
		if len(accepted) > 0 && rand.Float64() < *cancelRatio {
			target := accepted[rand.Intn(len(accepted))]
			if _, err := svc.Cancel(ctx, target); err != nil {
				if !errors.ErrorCodeEquals(err, string(errors.OrderConflict)) {
					cancelErrs++
					log.Printf("Cancel of %s failed: %v", target, err)
				}
			} else {
				cancels++
			}
		}

		if (i+1)%100 == 0 || i == *count-1 {
			log.Printf("Progress: %d/%d submitted, %d accepted, %d rejected, %d cancelled",
				i+1, *count, len(accepted), rejected, cancels)
		}

		if i < *count-1 {
			time.Sleep(*delay)
		}
	}

	log.Printf("--- Summary ---")
	log.Printf("Accepted: %d (%d limit, %d market, %d buy, %d sell)",
		len(accepted), limits, markets, buys, sells)
	log.Printf("Rejected: %d", rejected)
	log.Printf("Cancels sent: %d (%d failed)", cancels, cancelErrs)
}
