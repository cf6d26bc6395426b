// Package bootstrap assembles the data backend shared by the Spring
// binaries: the remote gateway for the configured mode plus the optional
// Kafka mirror bridge.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/spring/internal/config"
	"example.com/spring/internal/gateway"
	"example.com/spring/internal/gateway/postgres"
	"example.com/spring/internal/gateway/rest"
	"example.com/spring/internal/realtime"
)

// Backend bundles the gateway with the background plumbing behind it.
type Backend struct {
	Gateway gateway.Gateway

	pool     *pgxpool.Pool
	producer *realtime.Producer
	reader   *kafka.Reader
}

// New builds the backend for cfg. In hosted mode that is a REST client; in
// postgres mode a pgx repository with a LISTEN/NOTIFY feed and, when brokers
// are configured, a Kafka bridge carrying inserts across replicas.
// Background loops run until ctx is cancelled.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Backend, error) {
	if cfg.Mode == config.ModeHosted {
		return &Backend{
			Gateway: rest.NewClient(cfg.BackendURL, cfg.BackendKey, cfg.HTTPTimeout, logger),
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	broker := realtime.NewBroker()
	backend := &Backend{pool: pool}

	// Origin tags this replica's mirrored events so its own bridge can skip
	// them.
	origin := uuid.NewString()

	var mirror postgres.Mirror
	if len(cfg.KafkaBrokers) > 0 {
		backend.producer = realtime.NewProducer(cfg.KafkaBrokers, origin)
		mirror = backend.producer
	}

	backend.Gateway = postgres.NewRepository(pool, broker, mirror, logger)

	listener := postgres.NewListener(pool, broker, logger)
	go func() {
		if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("notification listener stopped")
		}
	}()

	if len(cfg.KafkaBrokers) > 0 {
		backend.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.KafkaBrokers,
			GroupID:     cfg.ConsumerGroup,
			GroupTopics: []string{realtime.TopicActivityInserts, realtime.TopicMessageInserts},
		})
		bridge := realtime.NewBridge(backend.reader, broker, origin, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("kafka bridge stopped")
			}
		}()
	}

	return backend, nil
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	if b.reader != nil {
		b.reader.Close()
	}
	if b.producer != nil {
		b.producer.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}
