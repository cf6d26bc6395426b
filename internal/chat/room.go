// Package chat implements the per-activity message room: an initial ordered
// fetch plus a live append subscription.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"example.com/spring/internal/domain"
	"example.com/spring/internal/gateway"
	"example.com/spring/internal/observability"
)

var (
	// ErrEmptyMessage rejects a send whose trimmed content is empty.
	ErrEmptyMessage = errors.New("message content is empty")
	// ErrNoSender rejects a send without an authenticated sender.
	ErrNoSender = errors.New("no authenticated sender")
)

// Gateway is the slice of the remote data gateway the room needs.
type Gateway interface {
	Messages(ctx context.Context, activityID string) ([]domain.Message, error)
	InsertMessage(ctx context.Context, message domain.Message) (*domain.Message, error)
	SubscribeMessageInserts(ctx context.Context, activityID string) (gateway.Subscription, error)
}

// Room is one activity's chat transcript. Pushed inserts append at the tail,
// de-duplicated by message id so the echo of a local send shows once.
type Room struct {
	activityID string
	gw         Gateway
	logger     zerolog.Logger

	mu       sync.Mutex
	messages []domain.Message
	seen     map[string]struct{}
	sub      gateway.Subscription
	closed   bool
}

// NewRoom constructs a Room for one activity.
func NewRoom(gw Gateway, activityID string, logger zerolog.Logger) *Room {
	return &Room{
		activityID: activityID,
		gw:         gw,
		logger:     logger,
		seen:       make(map[string]struct{}),
	}
}

// Open fetches the transcript oldest-first and starts the live
// subscription. A fetch failure degrades to an empty transcript.
func (r *Room) Open(ctx context.Context) error {
	messages, err := r.gw.Messages(ctx, r.activityID)
	if err != nil {
		r.logger.Error().Err(err).
			Str("activity_id", r.activityID).
			Msg("message fetch failed")
		messages = nil
	}

	r.mu.Lock()
	r.messages = r.messages[:0]
	for _, msg := range messages {
		if _, dup := r.seen[msg.ID]; dup {
			continue
		}
		r.seen[msg.ID] = struct{}{}
		r.messages = append(r.messages, msg)
	}
	r.mu.Unlock()

	sub, err := r.gw.SubscribeMessageInserts(ctx, r.activityID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return sub.Close()
	}
	r.sub = sub
	r.mu.Unlock()

	go func() {
		for evt := range sub.Events() {
			r.HandleInsert(evt)
		}
	}()
	return nil
}

// HandleInsert appends a pushed message, discarding duplicates by id and
// anything arriving after Close.
func (r *Room) HandleInsert(evt gateway.Event) {
	if evt.Collection != gateway.CollectionMessages || evt.Message == nil {
		return
	}
	if evt.Message.ActivityID != r.activityID {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if _, dup := r.seen[evt.Message.ID]; dup {
		return
	}
	r.seen[evt.Message.ID] = struct{}{}
	r.messages = append(r.messages, *evt.Message)
}

// Send validates and inserts a message. On failure the error is returned
// and the caller keeps its input; on success the insert result is appended
// locally so the sender sees it before the subscription echo arrives.
func (r *Room) Send(ctx context.Context, senderID, content string) (*domain.Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}
	if senderID == "" {
		return nil, ErrNoSender
	}

	inserted, err := r.gw.InsertMessage(ctx, domain.Message{
		ActivityID: r.activityID,
		SenderID:   senderID,
		Content:    trimmed,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		r.logger.Error().Err(err).
			Str("activity_id", r.activityID).
			Msg("message insert failed")
		return nil, err
	}

	observability.RecordMessageSent(inserted.CreatedAt)
	r.HandleInsert(gateway.Event{Collection: gateway.CollectionMessages, Message: inserted})
	return inserted, nil
}

// Messages returns a copy of the transcript, oldest first.
func (r *Room) Messages() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make([]domain.Message, len(r.messages))
	copy(copied, r.messages)
	return copied
}

// DayGroup is one calendar date's worth of messages, in transcript order.
type DayGroup struct {
	Date     string
	Messages []domain.Message
}

// Groups partitions the transcript into calendar-date buckets, oldest
// bucket first.
func (r *Room) Groups() []DayGroup {
	return GroupByDay(r.Messages())
}

// GroupByDay partitions messages into calendar-date buckets, preserving
// order within and across buckets.
func GroupByDay(messages []domain.Message) []DayGroup {
	var groups []DayGroup
	for _, msg := range messages {
		date := msg.CreatedAt.Format("2006-01-02")
		if n := len(groups); n > 0 && groups[n-1].Date == date {
			groups[n-1].Messages = append(groups[n-1].Messages, msg)
			continue
		}
		groups = append(groups, DayGroup{Date: date, Messages: []domain.Message{msg}})
	}
	return groups
}

// Close tears down the live subscription. Idempotent; safe on every exit
// path.
func (r *Room) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()

	if sub != nil {
		return sub.Close()
	}
	return nil
}
