package network

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client to server events.
const (
	EventUsername   = "username"
	EventCreateRoom = "createRoom"
	EventJoinRoom   = "joinRoom"
	EventMove       = "move"
	EventCloseRoom  = "closeRoom"
)

// Server to client events. EventMove and EventCloseRoom travel both ways.
const (
	EventAck                = "ack"
	EventOpponentJoined     = "opponentJoined"
	EventPlayerDisconnected = "playerDisconnected"
)

var ErrMissingEvent = errors.New("message has no event name")

// Message is the JSON envelope of every WebSocket frame. A request that
// expects a reply carries Ack; the reply echoes it with Event set to "ack".
type Message struct {
	Event string          `json:"event"`
	Ack   *uint64         `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage marshals payload into the Data of a new message.
func NewMessage(event string, payload any) (*Message, error) {
	msg := &Message{Event: event}
	if payload == nil {
		return msg, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		msg.Data = raw
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	msg.Data = data
	return msg, nil
}

// NewAck builds the reply to a request carrying ack id.
func NewAck(id uint64, payload any) (*Message, error) {
	msg, err := NewMessage(EventAck, payload)
	if err != nil {
		return nil, err
	}
	msg.Ack = &id
	return msg, nil
}

// Encode renders the message as a single text frame.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses one frame.
func Decode(frame []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Event == "" {
		return nil, ErrMissingEvent
	}
	return &msg, nil
}

// Bind unmarshals Data into v. An empty Data leaves v untouched.
func (m *Message) Bind(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("bind %s payload: %w", m.Event, err)
	}
	return nil
}
