package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"example.com/spring/internal/domain"
	"example.com/spring/internal/gateway"
	"example.com/spring/internal/realtime"
)

// NotifyChannel is the Postgres channel the insert triggers notify.
const NotifyChannel = "spring_inserts"

const listenRetryDelay = 2 * time.Second

// notifyPayload is the JSON body a trigger attaches to each notification.
type notifyPayload struct {
	Collection string          `json:"collection"`
	Record     json.RawMessage `json:"record"`
}

// Listener holds a dedicated connection on LISTEN and feeds decoded insert
// notifications into the broker. Because local inserts also fire the
// trigger, the broker's stream is identical on every replica.
type Listener struct {
	pool   *pgxpool.Pool
	broker *realtime.Broker
	logger zerolog.Logger
}

// NewListener constructs a Listener.
func NewListener(pool *pgxpool.Pool, broker *realtime.Broker, logger zerolog.Logger) *Listener {
	return &Listener{pool: pool, broker: broker, logger: logger}
}

// Run blocks, pumping notifications into the broker until ctx is cancelled.
// Connection loss is retried with a fixed delay.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.listenOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			l.logger.Error().Err(err).Msg("notification listener disconnected")
		}

		select {
		case <-time.After(listenRetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Listener) listenOnce(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return err
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch([]byte(notification.Payload))
	}
}

func (l *Listener) dispatch(payload []byte) {
	var body notifyPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		l.logger.Error().Err(err).Msg("undecodable insert notification")
		return
	}

	switch body.Collection {
	case gateway.CollectionActivities:
		var activity domain.Activity
		if err := json.Unmarshal(body.Record, &activity); err != nil {
			l.logger.Error().Err(err).Msg("undecodable activity notification")
			return
		}
		l.broker.Publish(gateway.Event{Collection: body.Collection, Activity: &activity})
	case gateway.CollectionMessages:
		var message domain.Message
		if err := json.Unmarshal(body.Record, &message); err != nil {
			l.logger.Error().Err(err).Msg("undecodable message notification")
			return
		}
		l.broker.Publish(gateway.Event{Collection: body.Collection, Message: &message})
	default:
		// Participant and profile inserts have no live subscribers.
	}
}
