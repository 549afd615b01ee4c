package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Frame type discriminators.
const (
	TypeSubscribe    = "subscribe"
	TypeMessage      = "message"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeSubscribeAck = "subscribe_ack"
	TypeNotification = "notification"
)

// Envelope is the minimal shape of any inbound frame.
type Envelope struct {
	Type string `json:"type"`
}

// SubscribeFrame registers interest in a channel. Sent after connect and
// re-sent for every tracked channel after a reconnect.
type SubscribeFrame struct {
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	RequestID string `json:"requestId"`
	UserID    string `json:"userId"`
}

// NewSubscribeFrame builds a subscribe frame with a fresh request id.
func NewSubscribeFrame(channel, userID string) SubscribeFrame {
	return SubscribeFrame{
		Type:      TypeSubscribe,
		Channel:   channel,
		RequestID: uuid.NewString(),
		UserID:    userID,
	}
}

// MessageFrame wraps an application payload for a destination channel.
type MessageFrame struct {
	Type        string `json:"type"`
	Destination string `json:"destination"`
	Payload     any    `json:"payload"`
	Timestamp   int64  `json:"timestamp"`
	UserID      string `json:"userId"`
}

// PingFrame is the server keepalive probe.
type PingFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	RequestID string `json:"requestId"`
}

// PongFrame answers a ping, echoing the original timestamp and request id.
type PongFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	RequestID string `json:"requestId"`
}

// Pong builds the reply for a ping.
func Pong(ping PingFrame) PongFrame {
	return PongFrame{
		Type:      TypePong,
		Timestamp: ping.Timestamp,
		RequestID: ping.RequestID,
	}
}

// Notification is the body of a domain notification frame.
type Notification struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	VenueID   string `json:"venueId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ParseNotification decodes a notification frame. It fails when the frame is
// not valid JSON or carries a different type tag.
func ParseNotification(raw []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return Notification{}, err
	}
	if n.Type != TypeNotification {
		return Notification{}, ErrNotNotification
	}
	return n, nil
}
