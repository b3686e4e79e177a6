package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/logger"
)

func startHub(t *testing.T, cfg config.WebSocketConfig) (*Hub, string) {
	t.Helper()
	hub := NewHub(cfg, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForClients(t *testing.T, hub *Hub, n int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetStats().ActiveConnections != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", n, hub.GetStats().ActiveConnections)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcast(t *testing.T) {
	cfg := config.GetDefaults().WebSocket
	cfg.Events.BroadcastConnections = false
	hub, url := startHub(t, cfg)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.BroadcastEvent(Event{
		Type: EventTypeDocument,
		Data: DocumentEvent{Command: "upload", Matches: 2, Selected: 2, Pages: 1},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type EventType     `json:"type"`
		Data DocumentEvent `json:"data"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.Type != EventTypeDocument || got.Data.Matches != 2 {
		t.Errorf("Unexpected event %+v", got)
	}
}

func TestShouldBroadcastEvent(t *testing.T) {
	cfg := config.GetDefaults().WebSocket
	cfg.Events.BroadcastRedactions = false
	hub := NewHub(cfg, logger.Nop())

	tests := []struct {
		eventType EventType
		want      bool
	}{
		{EventTypeDocument, true},
		{EventTypeRedaction, false},
		{EventTypeSystemStatus, true},
		{EventType("unknown"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			if got := hub.shouldBroadcastEvent(tt.eventType); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	cfg.Enabled = false
	if NewHub(cfg, logger.Nop()).shouldBroadcastEvent(EventTypeDocument) {
		t.Error("A disabled hub must not broadcast")
	}
}

func TestAuth(t *testing.T) {
	cfg := config.GetDefaults().WebSocket
	cfg.Auth.Enabled = true
	cfg.Auth.Username = "admin"
	cfg.Auth.Password = "secret"
	_, url := startHub(t, cfg)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected the handshake to fail without credentials")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %v", resp)
	}

	header := http.Header{}
	req, _ := http.NewRequest(http.MethodGet, "http://example", nil)
	req.SetBasicAuth("admin", "secret")
	header.Set("Authorization", req.Header.Get("Authorization"))

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial with credentials failed: %v", err)
	}
	conn.Close()
}

func TestCheckOrigin(t *testing.T) {
	cfg := config.GetDefaults().WebSocket
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	hub := NewHub(cfg, logger.Nop())

	for origin, want := range map[string]bool{
		"":                        true,
		"https://app.example.com": true,
		"https://evil.example":    false,
	} {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := hub.checkOrigin(r); got != want {
			t.Errorf("Origin %q: expected %v, got %v", origin, want, got)
		}
	}
}
