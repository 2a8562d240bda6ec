// Package command consumes chat commands from the bus and runs one funding
// saga per command.
package command

import (
	"context"
	"fmt"
	"log/slog"

	"transfer-ever/internal/bus"
	xerrors "transfer-ever/internal/errors"
	"transfer-ever/internal/funding"
	"transfer-ever/internal/observability/alerting"
	"transfer-ever/internal/observability/metrics"
	"transfer-ever/pkg/logger"
)

// Command dispositions reported to metrics.
const (
	DispositionIgnored       = "ignored"
	DispositionBadParameters = "bad_parameters"
	DispositionSucceeded     = "succeeded"
	DispositionFailed        = "failed"
)

// Runner executes a funding request.
type Runner interface {
	Run(ctx context.Context, req funding.Request, notifier funding.Notifier) (*funding.Outcome, error)
}

// Processor reads commands from a consumer and publishes replies.
type Processor struct {
	runner      Runner
	consumer    bus.Consumer
	publisher   bus.Publisher
	replyTopic  string
	workerCount int
	logger      *slog.Logger
	alerter     alerting.Dispatcher
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger sets the debug logger.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithWorkerCount sets how many commands run concurrently.
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithReplyTopic overrides the topic replies are published on.
func WithReplyTopic(topic string) ProcessorOption {
	return func(p *Processor) {
		if topic != "" {
			p.replyTopic = topic
		}
	}
}

// WithAlertDispatcher sets where alerts go.
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// NewProcessor builds a Processor.
func NewProcessor(runner Runner, consumer bus.Consumer, publisher bus.Publisher, opts ...ProcessorOption) *Processor {
	p := &Processor{
		runner:      runner,
		consumer:    consumer,
		publisher:   publisher,
		replyTopic:  bus.TopicReplies,
		workerCount: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start consumes until ctx is done.
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "no command consumer configured")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.Handle)
}

// Handle processes one message. It only returns an error when the
// processor is misconfigured; command failures are answered on the bus.
func (p *Processor) Handle(ctx context.Context, msg bus.Message) error {
	if p.runner == nil || p.publisher == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "command processor not initialized")
	}
	if !funding.IsCommand(msg.Msg) {
		metrics.ObserveCommand(DispositionIgnored)
		return nil
	}
	// A started command runs to completion: shutdown must not interrupt a
	// saga between submissions or drop its reply and alert.
	ctx = context.WithoutCancel(ctx)
	replier := bus.NewReplier(p.publisher, p.replyTopic, msg)

	req, err := funding.ParseCommand(msg.Msg)
	if err != nil {
		metrics.ObserveCommand(DispositionBadParameters)
		p.logDebug("rejecting malformed command", slog.String("message_id", msg.ID), slog.String("reason", err.Error()))
		p.reply(ctx, replier, msg, funding.ParameterErrorText)
		return nil
	}
	req.CommandID = msg.ID

	outcome, runErr := p.run(ctx, req, replier)
	runID := ""
	if outcome != nil {
		runID = outcome.RunID
	}
	if runErr != nil {
		metrics.ObserveCommand(DispositionFailed)
		code := xerrors.CodeOf(runErr)
		logger.Audit().Warn("funding failed",
			slog.String("command_id", msg.ID),
			slog.String("run_id", runID),
			slog.String("error_code", string(code)),
			slog.String("error", runErr.Error()),
		)
		p.reply(ctx, replier, msg, funding.ReplyText(runErr))
		if xerrors.ShouldAlert(runErr) {
			p.emitAlert(ctx, runErr, runID, msg.ID)
		}
		return nil
	}

	metrics.ObserveCommand(DispositionSucceeded)
	logger.Audit().Info("funding succeeded",
		slog.String("command_id", msg.ID),
		slog.String("run_id", runID),
		slog.String("asset", req.Asset),
		slog.String("amount", req.Amount),
		slog.Bool("activated", outcome.Activated),
	)
	return nil
}

// run turns a panic inside the saga into an alerting error so one bad
// command cannot take a worker down.
func (p *Processor) run(ctx context.Context, req funding.Request, notifier funding.Notifier) (outcome *funding.Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.L().Error("funding run panicked", slog.String("command_id", req.CommandID), slog.Any("panic", rec))
			err = xerrors.Wrap(xerrors.CodeUnknown, fmt.Errorf("panic: %v", rec), "",
				xerrors.WithMetadata("stage", "panic"),
				xerrors.WithAlert(true))
			outcome = nil
		}
	}()
	return p.runner.Run(ctx, req, notifier)
}

func (p *Processor) reply(ctx context.Context, replier *bus.Replier, msg bus.Message, text string) {
	if err := replier.Notify(ctx, text); err != nil {
		logger.L().Error("publishing reply failed", slog.Any("error", err), slog.String("command_id", msg.ID))
	}
}

func (p *Processor) emitAlert(ctx context.Context, cause error, runID, commandID string) {
	if p.alerter == nil {
		return
	}
	if err := p.alerter.Notify(ctx, alerting.FromError(cause, runID, commandID)); err != nil {
		logger.L().Error("alert dispatch failed", slog.Any("error", err), slog.String("run_id", runID))
	}
}

func (p *Processor) logDebug(msg string, attrs ...slog.Attr) {
	if p.logger == nil {
		return
	}
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	p.logger.Debug(msg, args...)
}
