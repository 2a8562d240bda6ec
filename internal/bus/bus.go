// Package bus carries chat commands in and replies out over a message
// broker. Delivery is at most once: consumers acknowledge a message when it
// is received and never requeue it.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Default topics.
const (
	TopicCommands = "everlife-transfer-ever"
	TopicReplies  = "everlife-communication-svc"
	TopicAlerts   = "transferd-alerts"
)

// Message types.
const (
	TypeMsg   = "msg"
	TypeReply = "reply"
	TypeAlert = "alert"
)

// Message is the envelope exchanged with the communication manager.
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Msg       string            `json:"msg"`
	ReplyTo   string            `json:"reply_to,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage returns a message with a fresh id.
func NewMessage(typ, text string) Message {
	return Message{ID: uuid.NewString(), Type: typ, Msg: text, CreatedAt: time.Now().UTC()}
}

// Reply builds the reply to m. Headers are copied so the communication
// manager can route it back to the originating conversation.
func (m Message) Reply(text string) Message {
	reply := NewMessage(TypeReply, text)
	reply.ReplyTo = m.ID
	if len(m.Headers) > 0 {
		reply.Headers = make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			reply.Headers[k] = v
		}
	}
	return reply
}

// Encode serialises m for the wire.
func Encode(m Message) ([]byte, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return json.Marshal(m)
}

// Decode parses a wire payload.
func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("decode bus message: %w", err)
	}
	return m, nil
}

// Handler processes one inbound message.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Close() error
}

// Consumer delivers messages from the inbound topic to handler using
// workerCount goroutines until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Bus is both a Publisher and a Consumer.
type Bus interface {
	Publisher
	Consumer
}
