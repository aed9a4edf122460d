package events

import (
	"context"
	"log/slog"
)

// Worker drains the emit channel into the sink. Publish failures are logged
// and dropped: the event stream is best-effort telemetry, never worth
// failing a request over.
type Worker struct {
	sink   Sink
	inbox  <-chan AskEvent
	logger *slog.Logger
}

// NewWorker constructs a worker over the given inbox.
func NewWorker(logger *slog.Logger, sink Sink, inbox <-chan AskEvent) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run consumes until the context is cancelled or the inbox closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.sink.Publish(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to publish ask event",
					"correlation_id", event.CorrelationID, "error", err)
			}
		}
	}
}

// Emitter offers non-blocking emission into the worker's inbox. When the
// buffer is full the event is dropped rather than stalling the request path.
type Emitter struct {
	inbox  chan<- AskEvent
	logger *slog.Logger
}

// NewEmitter wraps the inbox channel.
func NewEmitter(logger *slog.Logger, inbox chan<- AskEvent) *Emitter {
	return &Emitter{inbox: inbox, logger: logger}
}

// Emit enqueues the event if there is room.
func (e *Emitter) Emit(ctx context.Context, event AskEvent) {
	select {
	case e.inbox <- event:
	default:
		e.logger.WarnContext(ctx, "event inbox full, dropping ask event",
			"correlation_id", event.CorrelationID)
	}
}
