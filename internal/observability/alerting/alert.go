// Package alerting routes operator alerts, such as a submission whose
// outcome is unknown and needs manual reconciliation.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"transfer-ever/internal/bus"
	xerrors "transfer-ever/internal/errors"
	"transfer-ever/pkg/logger"
)

// Channel names a notification channel.
type Channel string

const (
	ChannelLog Channel = "log"
	ChannelBus Channel = "bus"
)

// Event describes something an operator has to look at.
type Event struct {
	Code       xerrors.Code
	Message    string
	Severity   xerrors.Severity
	RunID      string
	CommandID  string
	Metadata   map[string]string
	OccurredAt time.Time
}

// Notifier sends events to one channel.
type Notifier interface {
	Channel() Channel
	Notify(ctx context.Context, event Event) error
}

// Dispatcher accepts events.
type Dispatcher interface {
	Notify(ctx context.Context, event Event) error
}

// FanoutDispatcher delivers each event to every registered notifier.
type FanoutDispatcher struct {
	notifiers map[Channel]Notifier
}

// NewFanout builds a dispatcher. A later notifier replaces an earlier one
// on the same channel.
func NewFanout(notifiers ...Notifier) *FanoutDispatcher {
	set := make(map[Channel]Notifier, len(notifiers))
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		set[n.Channel()] = n
	}
	return &FanoutDispatcher{notifiers: set}
}

// Channels lists the registered channels in name order.
func (d *FanoutDispatcher) Channels() []Channel {
	if d == nil {
		return nil
	}
	out := make([]Channel, 0, len(d.notifiers))
	for ch := range d.notifiers {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Notify fans event out and joins the channel errors.
func (d *FanoutDispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, notifier := range d.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", notifier.Channel(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// FromError builds an event from a coded error. Metadata on the error
// (tx hash, step, outcome) is carried over.
func FromError(err error, runID, commandID string) Event {
	code := xerrors.CodeOf(err)
	event := Event{
		Code:       code,
		Message:    err.Error(),
		Severity:   xerrors.SeverityOf(err),
		RunID:      runID,
		CommandID:  commandID,
		OccurredAt: time.Now().UTC(),
	}
	if e, ok := xerrors.From(err); ok {
		event.Metadata = e.Metadata()
	}
	return event
}

// LogNotifier writes events to the audit log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Channel() Channel { return ChannelLog }

func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	log := logger.Audit()
	if n != nil && n.Logger != nil {
		log = n.Logger
	}
	attrs := []any{
		slog.String("code", string(event.Code)),
		slog.String("severity", string(event.Severity)),
		slog.String("run_id", event.RunID),
		slog.String("command_id", event.CommandID),
		slog.String("message", event.Message),
		slog.Time("occurred_at", event.OccurredAt),
	}
	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String("meta."+k, event.Metadata[k]))
	}
	log.Error("alert", attrs...)
	return nil
}

// BusNotifier publishes events on an ops topic.
type BusNotifier struct {
	Publisher bus.Publisher
	Topic     string
}

func (n *BusNotifier) Channel() Channel { return ChannelBus }

func (n *BusNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.Publisher == nil {
		logger.L().Warn("bus alert notifier not configured, skipping", slog.String("run_id", event.RunID))
		return nil
	}
	topic := n.Topic
	if topic == "" {
		topic = bus.TopicAlerts
	}
	msg := bus.NewMessage(bus.TypeAlert, fmt.Sprintf("[%s] %s: %s", event.Severity, event.Code, event.Message))
	msg.Headers = map[string]string{
		"code":       string(event.Code),
		"severity":   string(event.Severity),
		"run_id":     event.RunID,
		"command_id": event.CommandID,
	}
	for k, v := range event.Metadata {
		msg.Headers["meta."+k] = v
	}
	return n.Publisher.Publish(ctx, topic, msg)
}
