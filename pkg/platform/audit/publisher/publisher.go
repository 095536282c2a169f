// Package publisher delivers audit events to a Store, synchronously by
// default or through a buffered channel when async mode is enabled.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	audit "certflow/pkg/platform/audit"
)

type Publisher struct {
	store audit.Store

	inbox chan audit.Event
	wg    sync.WaitGroup
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous delivery through a channel of the
// given capacity. Close drains the buffer before returning.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. In sync mode the store error is returned; in async
// mode delivery is best-effort and Emit never blocks the caller beyond the
// buffer capacity.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	p.inbox <- event
	return nil
}

// List returns events recorded against the given target id.
func (p *Publisher) List(ctx context.Context, targetID string) ([]audit.Event, error) {
	return p.store.ListByTarget(ctx, targetID)
}

// Close stops the async worker after draining buffered events. Safe to call
// in sync mode and safe to call twice.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil {
			slog.Error("audit append failed", "action", event.Action, "target", event.TargetID, "error", err)
		}
	}
}
