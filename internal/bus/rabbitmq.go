package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"transfer-ever/pkg/logger"
)

// RabbitMQConfig describes the AMQP transport. Each topic maps to a queue
// of the same name on the default exchange.
type RabbitMQConfig struct {
	URL        string
	Inbound    string
	Prefetch   int
	Durable    bool
	AutoDelete bool
}

// RabbitMQBus publishes to and consumes from RabbitMQ queues.
type RabbitMQBus struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	inbound string
	cfg     RabbitMQConfig

	mu       sync.Mutex
	declared map[string]bool
}

// NewRabbitMQBus dials the broker and declares the inbound queue.
func NewRabbitMQBus(cfg RabbitMQConfig) (*RabbitMQBus, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	inbound := cfg.Inbound
	if inbound == "" {
		inbound = TopicCommands
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("set rabbitmq qos: %w", err)
		}
	}
	b := &RabbitMQBus{conn: conn, ch: ch, inbound: inbound, cfg: cfg, declared: make(map[string]bool)}
	if err := b.declare(inbound); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *RabbitMQBus) declare(queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.declared[queue] {
		return nil
	}
	if _, err := b.ch.QueueDeclare(queue, b.cfg.Durable, b.cfg.AutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare rabbitmq queue %s: %w", queue, err)
	}
	b.declared[queue] = true
	return nil
}

// Publish sends msg to the queue named topic.
func (b *RabbitMQBus) Publish(ctx context.Context, topic string, msg Message) error {
	if b == nil || b.ch == nil {
		return errors.New("rabbitmq bus not initialised")
	}
	if err := b.declare(topic); err != nil {
		return err
	}
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	return b.ch.PublishWithContext(ctx, "", topic, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   msg.ID,
		Body:        payload,
	})
}

// Consume acknowledges each delivery before handling it, so a crash
// mid-handler never causes the command to run twice. It returns once
// every in-flight handler has finished.
func (b *RabbitMQBus) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if b == nil || b.ch == nil {
		return errors.New("rabbitmq bus not initialised")
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	deliveries, err := b.ch.Consume(b.inbound, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("subscribe rabbitmq queue: %w", err)
	}
	log := logger.Named("bus.rabbitmq")

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					if ctx.Err() != nil {
						// Unacked, so the broker redelivers it to the next consumer.
						return
					}
					_ = d.Ack(false)
					msg, err := Decode(d.Body)
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

// Close closes the channel and connection.
func (b *RabbitMQBus) Close() error {
	if b == nil {
		return nil
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

var _ Bus = (*RabbitMQBus)(nil)
