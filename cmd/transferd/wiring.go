package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"transfer-ever/internal/bus"
	"transfer-ever/internal/config"
	"transfer-ever/internal/journal"
	"transfer-ever/internal/observability/alerting"
	"transfer-ever/pkg/logger"
)

func openJournal(ctx context.Context, cfg config.JournalConfig) (journal.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return journal.NewMemoryStore(), nil
	case "mysql":
		return journal.NewMySQLStore(ctx, journal.MySQLConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown journal driver: %s", cfg.Driver)
	}
}

func openBus(ctx context.Context, cfg config.BusConfig) (bus.Bus, error) {
	switch cfg.Driver {
	case "", "memory":
		return &consoleBus{
			MemoryBus:  bus.NewMemoryBus(cfg.CommandTopic, cfg.BufferSize),
			inbound:    cfg.CommandTopic,
			replyTopic: cfg.ReplyTopic,
			alertTopic: cfg.AlertTopic,
		}, nil
	case "redis":
		return bus.NewRedisBus(ctx, bus.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			Inbound:   cfg.CommandTopic,
			BlockWait: time.Duration(cfg.Redis.BlockWaitSeconds) * time.Second,
		})
	case "rabbitmq":
		return bus.NewRabbitMQBus(bus.RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Inbound:    cfg.CommandTopic,
			Prefetch:   cfg.RabbitMQ.Prefetch,
			Durable:    cfg.RabbitMQ.Durable,
			AutoDelete: cfg.RabbitMQ.AutoDelete,
		})
	case "nats":
		return bus.NewNATSBus(bus.NATSConfig{
			URL:        cfg.NATS.URL,
			Name:       cfg.NATS.Name,
			Inbound:    cfg.CommandTopic,
			QueueGroup: cfg.NATS.QueueGroup,
		})
	default:
		return nil, fmt.Errorf("unknown bus driver: %s", cfg.Driver)
	}
}

func newAlerter(cfg config.AlertingConfig, pub bus.Publisher, topic string) alerting.Dispatcher {
	var notifiers []alerting.Notifier
	if cfg.Log {
		notifiers = append(notifiers, &alerting.LogNotifier{})
	}
	if cfg.Bus {
		notifiers = append(notifiers, &alerting.BusNotifier{Publisher: pub, Topic: topic})
	}
	return alerting.NewFanout(notifiers...)
}

// consoleBus is the single process transport: commands are read from a
// terminal and replies and alerts are printed back.
type consoleBus struct {
	*bus.MemoryBus
	inbound    string
	replyTopic string
	alertTopic string
}

func (c *consoleBus) run(ctx context.Context, in io.Reader, out io.Writer) error {
	go c.print(ctx, out, c.replyTopic, "")
	go c.print(ctx, out, c.alertTopic, "ALERT ")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				logger.L().Info("console input closed")
				<-ctx.Done()
				return ctx.Err()
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := c.Publish(ctx, c.inbound, bus.NewMessage(bus.TypeMsg, line)); err != nil {
				return err
			}
		}
	}
}

func (c *consoleBus) print(ctx context.Context, out io.Writer, topic, prefix string) {
	for {
		msg, err := c.Next(ctx, topic)
		if err != nil {
			return
		}
		fmt.Fprintf(out, "%s%s\n", prefix, msg.Msg)
	}
}
