package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"transfer-ever/pkg/logger"
)

// NATSConfig describes the NATS transport. Topics are used as subjects.
type NATSConfig struct {
	URL        string
	Name       string
	Inbound    string
	QueueGroup string
}

// NATSBus publishes to NATS subjects and consumes the inbound subject
// through a queue group so replicas share the load.
type NATSBus struct {
	conn    *nats.Conn
	inbound string
	group   string
}

// NewNATSBus connects to the NATS server.
func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}
	name := cfg.Name
	if name == "" {
		name = "transferd"
	}
	log := logger.Named("bus.nats")
	opts := []nats.Option{
		nats.Name(name),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	inbound := cfg.Inbound
	if inbound == "" {
		inbound = TopicCommands
	}
	group := cfg.QueueGroup
	if group == "" {
		group = name
	}
	return &NATSBus{conn: conn, inbound: inbound, group: group}, nil
}

// Publish sends msg on the subject topic.
func (b *NATSBus) Publish(_ context.Context, topic string, msg Message) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(topic, payload); err != nil {
		return fmt.Errorf("nats publish to %s: %w", topic, err)
	}
	return nil
}

// Consume subscribes to the inbound subject and fans deliveries out to
// workerCount goroutines. It returns once in-flight handlers finish.
func (b *NATSBus) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	deliveries := make(chan *nats.Msg, workerCount*16)
	sub, err := b.conn.ChanQueueSubscribe(b.inbound, b.group, deliveries)
	if err != nil {
		return fmt.Errorf("subscribe nats subject %s: %w", b.inbound, err)
	}
	defer sub.Unsubscribe()
	log := logger.Named("bus.nats")

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case m := <-deliveries:
					if ctx.Err() != nil {
						return
					}
					msg, err := Decode(m.Data)
					if err != nil {
						log.Warn("dropping malformed message", slog.Any("error", err))
						continue
					}
					_ = handler(ctx, msg)
				}
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close drains pending messages and closes the connection.
func (b *NATSBus) Close() error {
	if b == nil || b.conn == nil {
		return nil
	}
	err := b.conn.Drain()
	b.conn.Close()
	return err
}

var _ Bus = (*NATSBus)(nil)
