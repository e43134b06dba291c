// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import (
	"encoding/json"
	"time"
)

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (e.g., overlay PNGs)
	BinaryMessage
)

// Message represents a message to be broadcast to clients.
// Topic, when set, is the session ID the message belongs to.
type Message struct {
	Type  MessageType
	Topic string
	Data  []byte
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage creates a binary message
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// Event types published to dashboard clients.
const (
	EventSessionStarted = "session.started"
	EventSessionUpdate  = "session.update"
	EventSessionEnded   = "session.ended"
	EventAnalysisReady  = "analysis.ready"
	EventLeadCreated    = "lead.created"
)

// Event is the JSON envelope for dashboard broadcasts.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, sessionID string, data any) Event {
	return Event{Type: typ, SessionID: sessionID, Time: time.Now().UTC(), Data: data}
}

// Encode marshals the event into a JSON message.
func (e Event) Encode() (Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Message{}, err
	}
	msg := NewJSONMessage(data)
	msg.Topic = e.SessionID
	return msg, nil
}
