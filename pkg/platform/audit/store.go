package audit

import "context"

// Store persists audit events. Append-only except for Clear, which drops
// everything but critical-action records.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByTarget(ctx context.Context, targetID string) ([]Event, error)
	ListAll(ctx context.Context) ([]Event, error)
	Clear(ctx context.Context) error
}
