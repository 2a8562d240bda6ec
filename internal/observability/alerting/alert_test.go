package alerting

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"transfer-ever/internal/bus"
	xerrors "transfer-ever/internal/errors"
)

type stubNotifier struct {
	channel Channel
	events  []Event
	err     error
}

func (s *stubNotifier) Channel() Channel { return s.channel }

func (s *stubNotifier) Notify(_ context.Context, event Event) error {
	s.events = append(s.events, event)
	return s.err
}

func TestFanoutDeliversToEveryChannel(t *testing.T) {
	a := &stubNotifier{channel: "a"}
	b := &stubNotifier{channel: "b", err: errors.New("down")}
	d := NewFanout(a, nil, b)

	err := d.Notify(context.Background(), Event{Code: xerrors.CodeUnknown})
	if err == nil || !strings.Contains(err.Error(), "channel b") {
		t.Fatalf("expected joined channel error, got %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both notifiers to be called, got %d and %d", len(a.events), len(b.events))
	}
	if got := d.Channels(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected channels %v", got)
	}

	var nilDispatcher *FanoutDispatcher
	if err := nilDispatcher.Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("nil dispatcher should be a no-op, got %v", err)
	}
}

func TestFromErrorCarriesMetadata(t *testing.T) {
	err := xerrors.New(xerrors.CodeTimeout, "submission outcome unknown",
		xerrors.WithMetadata("tx_hash", "abc"),
		xerrors.WithSeverity(xerrors.SeverityCritical))

	event := FromError(err, "run-1", "cmd-1")
	if event.Code != xerrors.CodeTimeout || event.Severity != xerrors.SeverityCritical {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Metadata["tx_hash"] != "abc" || event.RunID != "run-1" || event.CommandID != "cmd-1" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.OccurredAt.IsZero() {
		t.Fatalf("expected timestamp")
	}
}

func TestLogNotifierWritesAuditLine(t *testing.T) {
	var buf bytes.Buffer
	n := &LogNotifier{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	err := n.Notify(context.Background(), Event{
		Code:       xerrors.CodeStorageFailure,
		Severity:   xerrors.SeverityCritical,
		RunID:      "run-9",
		Message:    "journal down",
		Metadata:   map[string]string{"step": "PAYING"},
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"code":"STORAGE_FAILURE"`, `"run_id":"run-9"`, `"meta.step":"PAYING"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestBusNotifierPublishes(t *testing.T) {
	b := bus.NewMemoryBus(bus.TopicCommands, 4)
	n := &BusNotifier{Publisher: b}
	ctx := context.Background()

	err := n.Notify(ctx, Event{
		Code:     xerrors.CodeUnknown,
		Severity: xerrors.SeverityCritical,
		RunID:    "run-2",
		Message:  "outcome unknown",
		Metadata: map[string]string{"tx_hash": "deadbeef"},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	msg, err := b.Next(ctx, bus.TopicAlerts)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg.Type != bus.TypeAlert || msg.Headers["run_id"] != "run-2" || msg.Headers["meta.tx_hash"] != "deadbeef" {
		t.Fatalf("unexpected alert message %+v", msg)
	}

	var unconfigured *BusNotifier
	if err := unconfigured.Notify(ctx, Event{}); err != nil {
		t.Fatalf("unconfigured notifier should skip, got %v", err)
	}
}
