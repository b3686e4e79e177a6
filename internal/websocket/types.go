package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeDocument covers uploads and edits of matches or selection
	EventTypeDocument EventType = "document"
	// EventTypeRedaction represents a completed redaction
	EventTypeRedaction EventType = "redaction"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// DocumentEvent reports activity in a session. It carries counts only, never document
// text or user identities.
type DocumentEvent struct {
	Command  string `json:"command"`
	Matches  int    `json:"matches"`
	Selected int    `json:"selected"`
	Pages    int    `json:"pages"`
}

// RedactionEvent reports a produced redacted document
type RedactionEvent struct {
	Redacted int `json:"redacted"`
	Pages    int `json:"pages"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	ActiveSessions   int    `json:"active_sessions"`
	ActiveRules      int    `json:"active_rules"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type   string      `json:"type"`
	Events []EventType `json:"events,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	Events      map[EventType]bool // nil means every event
	ConnectedAt time.Time
	LastPing    time.Time
	IP          string
}
