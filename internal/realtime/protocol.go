package realtime

import (
	"encoding/json"
	"fmt"
)

// Wire events. Names are camelCase on the wire.
const (
	EventSendMessage  = "sendMessage"
	EventAck          = "ack"
	EventNewMessage   = "newMessage"
	EventNotification = "notification"
	EventPing         = "ping"
	EventPong         = "pong"
	EventError        = "error"
)

// Envelope is the single JSON frame exchanged over the realtime socket in both directions.
// Commands that expect a reply carry an AckID which the matching "ack" frame echoes.
type Envelope struct {
	Event string          `json:"event"`
	AckID string          `json:"ack_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// SendMessagePayload is the data of an inbound sendMessage command. The sender is never part of
// the payload; it is the authenticated owner of the connection.
type SendMessagePayload struct {
	Content    string `json:"content"`
	ReceiverID string `json:"receiver_id" validate:"required"`
	RequestID  string `json:"request_id" validate:"required"`
}

// NewEnvelope encodes payload as the data of an event frame.
func NewEnvelope(event string, payload any) (Envelope, error) {
	env := Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("realtime: encode %s payload: %w", event, err)
	}
	env.Data = data
	return env, nil
}

// Decode unmarshals the envelope data into target.
func (e Envelope) Decode(target any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("realtime: %s frame has no data", e.Event)
	}
	return json.Unmarshal(e.Data, target)
}
