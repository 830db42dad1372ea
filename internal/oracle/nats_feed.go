package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"LevVault/internal/observability"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// PriceUpdate is the wire format published by upstream price feeds on
// lev.prices.>.
type PriceUpdate struct {
	Price     int64 `json:"price"`     // 6-decimal fixed point
	Sequence  int64 `json:"sequence"`  // feed-assigned, monotonic
	Timestamp int64 `json:"timestamp"` // unix micros
}

// NATSFeed consumes the JetStream price stream and caches the latest
// update, serving it as a PriceSource. Updates with a sequence at or
// below the cached one are dropped so redeliveries cannot move the
// price backwards.
type NATSFeed struct {
	js      jetstream.JetStream
	log     zerolog.Logger
	metrics *observability.Metrics

	mu        sync.RWMutex
	price     int64
	sequence  int64
	timestamp int64

	consumer jetstream.ConsumeContext
}

func NewNATSFeed(js jetstream.JetStream, metrics *observability.Metrics) *NATSFeed {
	return &NATSFeed{
		js:      js,
		log:     observability.NewLogger("oracle"),
		metrics: metrics,
	}
}

// Start creates the durable consumer and begins caching updates.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (f *NATSFeed) Start(ctx context.Context) error {
	consumer, err := f.js.CreateOrUpdateConsumer(ctx, "LEV_PRICES", jetstream.ConsumerConfig{
		Durable:       "levvault-prices",
		FilterSubject: "lev.prices.>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverLastPolicy,
	})
	if err != nil {
		return fmt.Errorf("create price consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var upd PriceUpdate
		if err := json.Unmarshal(msg.Data(), &upd); err != nil {
			f.log.Warn().Err(err).Str("subject", msg.Subject()).Msg("unparseable price update")
			msg.Ack() // don't redeliver garbage
			return
		}
		f.apply(upd)
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("consume prices: %w", err)
	}

	f.consumer = cc
	f.log.Info().Msg("price feed consuming lev.prices.>")
	return nil
}

func (f *NATSFeed) apply(upd PriceUpdate) {
	if upd.Price <= 0 {
		f.log.Warn().Int64("price", upd.Price).Int64("seq", upd.Sequence).Msg("dropping non-positive price")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if upd.Sequence <= f.sequence && f.sequence != 0 {
		if f.metrics != nil {
			f.metrics.PriceStaleDrops.Inc()
		}
		return
	}

	f.price = upd.Price
	f.sequence = upd.Sequence
	f.timestamp = upd.Timestamp
	if f.metrics != nil {
		f.metrics.PriceUpdates.Inc()
	}
}

// Stop halts the consumer.
func (f *NATSFeed) Stop() {
	if f.consumer != nil {
		f.consumer.Stop()
	}
}

func (f *NATSFeed) Price() (int64, int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.price <= 0 {
		return 0, 0, ErrPriceUnavailable
	}
	return f.price, f.timestamp, nil
}

// EnsurePriceStream creates the inbound price stream if absent.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsurePriceStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "LEV_PRICES",
		Subjects:  []string{"lev.prices.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create price stream: %w", err)
	}
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
