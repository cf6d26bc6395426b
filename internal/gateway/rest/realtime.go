package rest

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"example.com/spring/internal/domain"
	"example.com/spring/internal/gateway"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// subscribeFrame is the first message sent on a realtime socket.
type subscribeFrame struct {
	Action     string `json:"action"`
	Collection string `json:"collection"`
	ActivityID string `json:"activity_id,omitempty"`
}

// insertFrame is a pushed live-insert record.
type insertFrame struct {
	Collection string          `json:"collection"`
	Record     json.RawMessage `json:"record"`
}

// SubscribeActivityInserts opens a live channel for new activities.
func (c *Client) SubscribeActivityInserts(ctx context.Context) (gateway.Subscription, error) {
	return c.subscribe(ctx, gateway.CollectionActivities, "")
}

// SubscribeMessageInserts opens a live channel for one activity's messages.
func (c *Client) SubscribeMessageInserts(ctx context.Context, activityID string) (gateway.Subscription, error) {
	return c.subscribe(ctx, gateway.CollectionMessages, activityID)
}

func (c *Client) subscribe(ctx context.Context, collection, activityID string) (gateway.Subscription, error) {
	endpoint := wsURL(c.baseURL) + "/realtime/v1/websocket?apikey=" + c.apiKey

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, c.remoteErr("subscribe", collection, err)
	}

	frame := subscribeFrame{Action: "subscribe", Collection: collection, ActivityID: activityID}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		conn.Close()
		return nil, c.remoteErr("subscribe", collection, err)
	}

	sub := &wsSubscription{
		conn:       conn,
		collection: collection,
		events:     make(chan gateway.Event, 64),
		done:       make(chan struct{}),
		logger:     c.logger,
	}
	go sub.readPump()
	go sub.pingPump()
	return sub, nil
}

// wsSubscription is a live-insert channel over one websocket connection.
type wsSubscription struct {
	conn       *websocket.Conn
	collection string
	events     chan gateway.Event
	done       chan struct{}
	logger     zerolog.Logger
	once       sync.Once
}

func (s *wsSubscription) Events() <-chan gateway.Event { return s.events }

// Close shuts the socket down. Idempotent; the events channel is closed by
// the read pump once the connection drops.
func (s *wsSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
		_ = s.conn.Close()
	})
	return nil
}

func (s *wsSubscription) readPump() {
	defer func() {
		_ = s.Close()
		close(s.events)
	}()

	s.conn.SetReadLimit(64 * 1024)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Debug().Err(err).Str("collection", s.collection).Msg("realtime socket closed")
			}
			return
		}

		evt, ok := decodeFrame(payload)
		if !ok {
			continue
		}
		select {
		case s.events <- evt:
		case <-s.done:
			return
		}
	}
}

func (s *wsSubscription) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func decodeFrame(payload []byte) (gateway.Event, bool) {
	var frame insertFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return gateway.Event{}, false
	}

	switch frame.Collection {
	case gateway.CollectionActivities:
		var activity domain.Activity
		if err := json.Unmarshal(frame.Record, &activity); err != nil {
			return gateway.Event{}, false
		}
		return gateway.Event{Collection: frame.Collection, Activity: &activity}, true
	case gateway.CollectionMessages:
		var message domain.Message
		if err := json.Unmarshal(frame.Record, &message); err != nil {
			return gateway.Event{}, false
		}
		return gateway.Event{Collection: frame.Collection, Message: &message}, true
	default:
		return gateway.Event{}, false
	}
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
