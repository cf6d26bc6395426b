package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/spring/internal/domain"
	"example.com/spring/internal/gateway"
)

// Topic names mirroring the remote collections.
const (
	TopicActivityInserts = "spring_activity_inserts"
	TopicMessageInserts  = "spring_message_inserts"
)

const (
	headerCollection = "collection"
	headerOrigin     = "origin"
)

// Producer lazily manages Kafka writers per topic and mirrors local inserts
// so other replicas can feed their own brokers.
type Producer struct {
	brokers []string
	origin  string
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewProducer creates a Producer. origin identifies this replica so the
// Bridge can skip events it published itself.
func NewProducer(brokers []string, origin string) *Producer {
	return &Producer{
		brokers: brokers,
		origin:  origin,
		writers: make(map[string]*kafka.Writer),
	}
}

// Mirror publishes an insert event to its collection topic.
func (p *Producer) Mirror(ctx context.Context, evt gateway.Event) error {
	topic, key, payload, err := encodeEvent(evt)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: headerCollection, Value: []byte(evt.Collection)},
			{Key: headerOrigin, Value: []byte(p.origin)},
		},
	}
	return p.writerForTopic(topic).WriteMessages(ctx, msg)
}

func (p *Producer) writerForTopic(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}
	p.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}

func encodeEvent(evt gateway.Event) (topic, key string, payload []byte, err error) {
	switch evt.Collection {
	case gateway.CollectionActivities:
		if evt.Activity == nil {
			return "", "", nil, errors.New("activity event without record")
		}
		payload, err = json.Marshal(evt.Activity)
		return TopicActivityInserts, evt.Activity.ID, payload, err
	case gateway.CollectionMessages:
		if evt.Message == nil {
			return "", "", nil, errors.New("message event without record")
		}
		payload, err = json.Marshal(evt.Message)
		return TopicMessageInserts, evt.Message.ActivityID, payload, err
	default:
		return "", "", nil, fmt.Errorf("unsupported collection: %s", evt.Collection)
	}
}

// Reader exposes the minimal kafka.Reader surface needed by the Bridge.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Bridge consumes mirrored insert events from Kafka and republishes those
// originating on other replicas into the local broker.
type Bridge struct {
	reader Reader
	broker *Broker
	origin string
	logger zerolog.Logger
}

// NewBridge constructs a Bridge.
func NewBridge(reader Reader, broker *Broker, origin string, logger zerolog.Logger) *Bridge {
	return &Bridge{reader: reader, broker: broker, origin: origin, logger: logger}
}

// Run blocks, pumping Kafka messages into the broker until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := b.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			b.logger.Error().Err(err).Msg("bridge fetch failed")
			continue
		}

		evt, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			b.logger.Error().Err(decodeErr).
				Str("topic", msg.Topic).
				Int64("offset", msg.Offset).
				Msg("bridge decode failed")
			// Commit malformed messages to avoid poison-pill loops.
			if commitErr := b.reader.CommitMessages(ctx, msg); commitErr != nil {
				b.logger.Error().Err(commitErr).Msg("bridge commit after decode failure")
			}
			continue
		}

		if origin, _ := headerValue(msg, headerOrigin); origin != b.origin {
			b.broker.Publish(evt)
		}

		if commitErr := b.reader.CommitMessages(ctx, msg); commitErr != nil {
			b.logger.Error().Err(commitErr).Msg("bridge commit failed")
		}
	}
}

func decodeMessage(msg kafka.Message) (gateway.Event, error) {
	collection, ok := headerValue(msg, headerCollection)
	if !ok {
		return gateway.Event{}, errors.New("missing collection header")
	}

	switch collection {
	case gateway.CollectionActivities:
		var activity domain.Activity
		if err := json.Unmarshal(msg.Value, &activity); err != nil {
			return gateway.Event{}, err
		}
		return gateway.Event{Collection: collection, Activity: &activity}, nil
	case gateway.CollectionMessages:
		var message domain.Message
		if err := json.Unmarshal(msg.Value, &message); err != nil {
			return gateway.Event{}, err
		}
		return gateway.Event{Collection: collection, Message: &message}, nil
	default:
		return gateway.Event{}, fmt.Errorf("unsupported collection: %s", collection)
	}
}

func headerValue(msg kafka.Message, key string) (string, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return string(header.Value), true
		}
	}
	return "", false
}
