// Package event defines the JSON frames exchanged over a chat connection.
//
// Every frame is an Envelope: {"event": "<name>", "data": ..., "ack": <id>}.
// A client that wants an acknowledgment sets "ack"; the server answers with
// an "ack" frame carrying the same id.
package event

import (
	"encoding/json"
	"fmt"
)

// Inbound event names.
const (
	JoinRoom     = "join_room"
	LeaveRoom    = "leave_room"
	SendMessage  = "send_message"
	Typing       = "typing"
	ReadMessages = "messages:read"
	React        = "reaction"
)

// Outbound event names.
const (
	MessagesInit    = "messages:init"
	MessageNew      = "message:new"
	UserOnline      = "user:online"
	UserOffline     = "user:offline"
	TypingUpdate    = "typing:update"
	MessagesRead    = "messages:read"
	MessageReaction = "message:reaction"
	System          = "system"
	Error           = "error"
	Ack             = "ack"
)

// Ack statuses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *int64          `json:"ack,omitempty"`
}

// Decode parses a raw inbound frame.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("failed to decode frame: missing event name")
	}
	return env, nil
}

// Bind unmarshals the envelope data into v. Absent data leaves v untouched.
func (e Envelope) Bind(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", e.Event, err)
	}
	return nil
}

// Encode builds an outbound frame.
func Encode(name string, data any) ([]byte, error) {
	return encode(name, data, nil)
}

// EncodeAck builds the acknowledgment frame for request id.
func EncodeAck(id int64, data AckPayload) ([]byte, error) {
	return encode(Ack, data, &id)
}

func encode(name string, data any, ack *int64) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	frame, err := json.Marshal(Envelope{Event: name, Data: raw, Ack: ack})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return frame, nil
}
