package worker

import (
	"context"

	audit "certflow/pkg/platform/audit"
)

// Sink receives audit events after they are persisted, typically a message
// broker for downstream consumers.
type Sink interface {
	Publish(ctx context.Context, event audit.Event) error
}

// Worker consumes audit events from a channel, persists them and forwards
// them to an optional sink. It keeps background processing testable without
// wiring broker implementations.
type Worker struct {
	store audit.Store
	sink  Sink
	inbox <-chan audit.Event
}

func NewWorker(store audit.Store, sink Sink, inbox <-chan audit.Event) *Worker {
	return &Worker{store: store, sink: sink, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
			if w.sink != nil {
				if err := w.sink.Publish(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}
