package main

import (
	"context"

	"certflow/pkg/platform/audit"
)

// inboxEmitter feeds audit events into the background worker's channel. The
// worker owns persistence and broker forwarding; Emit only blocks when the
// buffer is full.
type inboxEmitter chan<- audit.Event

func (e inboxEmitter) Emit(ctx context.Context, event audit.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case e <- event:
		return nil
	}
}
