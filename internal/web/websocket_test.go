package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"example.com/spring/internal/auth"
	"example.com/spring/internal/domain"
	"example.com/spring/internal/gateway"
)

type chanSubscription struct {
	events chan gateway.Event
	once   sync.Once
}

func (s *chanSubscription) Events() <-chan gateway.Event { return s.events }

func (s *chanSubscription) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

func newSocketServer(t *testing.T, gw gateway.Gateway) *httptest.Server {
	t.Helper()
	mux := newTestMux(t, gw, nil)
	guard := auth.NewGuard(testAuthCfg, ProtectedPrefixes)
	server := httptest.NewServer(guard.Wrap(mux))
	t.Cleanup(server.Close)
	return server
}

func TestChatSocketPushesRecordFrames(t *testing.T) {
	events := make(chan gateway.Event, 1)
	events <- gateway.Event{
		Collection: gateway.CollectionMessages,
		Message:    &domain.Message{ID: "m-9", ActivityID: "a1", Content: "see you there"},
	}
	gw := &mockGateway{msgSub: &chanSubscription{events: events}}
	server := newSocketServer(t, gw)

	header := http.Header{}
	header.Set("Cookie", auth.SessionCookie+"="+signTestToken(t, "user-1"))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat/a1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("failed to dial chat socket: %v", err)
	}
	defer conn.Close()

	// The browser script reads the record under the frame envelope, so its
	// id and content must sit at record.*, not at the top level.
	var frame struct {
		Collection string `json:"collection"`
		Record     struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"record"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	if frame.Collection != gateway.CollectionMessages {
		t.Fatalf("expected messages collection got %q", frame.Collection)
	}
	if frame.Record.ID != "m-9" || frame.Record.Content != "see you there" {
		t.Fatalf("unexpected record: %+v", frame.Record)
	}
}

func TestChatSocketRejectsAnonymous(t *testing.T) {
	server := newSocketServer(t, &mockGateway{})

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat/a1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		conn.Close()
		t.Fatal("expected the handshake to fail without a session")
	}
}
