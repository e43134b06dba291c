package hub

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
)

// startHubServer serves h on /ws/events over a loopback listener.
func startHubServer(t *testing.T, h *Hub) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/events", fws.New(func(c *fws.Conn) {
		if client := NewClient(h, c, c.Query("session")); client != nil {
			client.Run()
		}
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return "ws://" + ln.Addr().String() + "/ws/events"
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewHub(t *testing.T) {
	h := New("test", nil)
	if h.ClientCount() != 0 {
		t.Error("ClientCount should be 0 initially")
	}
}

func TestPublishReachesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("events", nil)
	go h.Run(ctx)
	url := startHubServer(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	waitForClients(t, h, 1)

	h.Publish(EventSessionStarted, "sess-1", map[string]int{"steps": 4})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Errorf("message type = %d, want text", mt)
	}
	var ev struct {
		Type      string         `json:"type"`
		SessionID string         `json:"session_id"`
		Data      map[string]int `json:"data"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != EventSessionStarted || ev.SessionID != "sess-1" || ev.Data["steps"] != 4 {
		t.Errorf("unexpected event %+v", ev)
	}

	h.BroadcastBinary([]byte{1, 2, 3})
	mt, data, err = ws.ReadMessage()
	if err != nil || mt != websocket.BinaryMessage || len(data) != 3 {
		t.Errorf("binary broadcast: type=%d len=%d err=%v", mt, len(data), err)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("events", nil)
	go h.Run(ctx)
	url := startHubServer(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	waitForClients(t, h, 1)

	ws.Close()
	waitForClients(t, h, 0)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("events", nil)
	go h.Run(ctx)
	url := startHubServer(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	waitForClients(t, h, 1)

	cancel()
	select {
	case <-h.Stopped():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("expected connection to close after hub stopped")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after stop", h.ClientCount())
	}
}

func TestTopicFilter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("events", nil)
	go h.Run(ctx)
	url := startHubServer(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(url+"?session=sess-2", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	waitForClients(t, h, 1)

	h.Publish(EventSessionUpdate, "sess-1", nil)
	h.Publish(EventSessionUpdate, "sess-2", nil)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.SessionID != "sess-2" {
		t.Errorf("received event for %q, want only sess-2", ev.SessionID)
	}
}

func TestClientWants(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		msg   Message
		want  bool
	}{
		{"unfiltered", "", Message{Topic: "a"}, true},
		{"untopiced message", "a", Message{}, true},
		{"match", "a", Message{Topic: "a"}, true},
		{"mismatch", "a", Message{Topic: "b"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{topic: tt.topic}
			if got := c.Wants(tt.msg); got != tt.want {
				t.Errorf("Wants() = %v, want %v", got, tt.want)
			}
		})
	}
}
