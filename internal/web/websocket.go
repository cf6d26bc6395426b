package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"example.com/spring/internal/gateway"
	"example.com/spring/internal/observability"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsFrame is the payload pushed to browser sockets.
type wsFrame struct {
	Collection string `json:"collection"`
	Record     any    `json:"record"`
}

// wsActivities streams live activity inserts to the feed page.
func (h *Handler) wsActivities(w http.ResponseWriter, r *http.Request) {
	sub, err := h.gw.SubscribeActivityInserts(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("activity subscription failed")
		http.Error(w, "subscription unavailable", http.StatusBadGateway)
		return
	}
	h.serveSubscription(w, r, sub)
}

// wsChat streams live message inserts for one activity to the chat page.
func (h *Handler) wsChat(w http.ResponseWriter, r *http.Request) {
	sub, err := h.gw.SubscribeMessageInserts(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error().Err(err).Msg("message subscription failed")
		http.Error(w, "subscription unavailable", http.StatusBadGateway)
		return
	}
	h.serveSubscription(w, r, sub)
}

// serveSubscription bridges a gateway subscription onto a browser websocket.
// The subscription closes with the socket on every exit path.
func (h *Handler) serveSubscription(w http.ResponseWriter, r *http.Request, sub gateway.Subscription) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	defer sub.Close()

	// Reader goroutine drains control frames and detects the peer closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame := wsFrame{Collection: evt.Collection}
			switch evt.Collection {
			case gateway.CollectionActivities:
				frame.Record = evt.Activity
			case gateway.CollectionMessages:
				frame.Record = evt.Message
			default:
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
			observability.RecordLiveEvent(evt.Collection)
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
