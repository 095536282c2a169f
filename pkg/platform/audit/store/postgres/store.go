package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"certflow/pkg/domain"
	audit "certflow/pkg/platform/audit"
	txcontext "certflow/pkg/platform/tx"
)

// Store persists audit events in PostgreSQL. Appends participate in the
// caller's transaction when one is carried in context, so the audit record
// commits atomically with the state change it describes.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) execer(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFor(ctx, s.db)
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (id, actor_id, role, action, from_state, to_state, target_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(), uuid.UUID(event.ActorID), event.Role, event.Action,
		event.FromState, event.ToState, event.TargetID, event.Note, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByTarget(ctx context.Context, targetID string) ([]audit.Event, error) {
	query := `
		SELECT actor_id, role, action, from_state, to_state, target_id, note, created_at
		FROM audit_events WHERE target_id = $1 ORDER BY created_at
	`
	return s.query(ctx, query, targetID)
}

func (s *Store) ListAll(ctx context.Context) ([]audit.Event, error) {
	query := `
		SELECT actor_id, role, action, from_state, to_state, target_id, note, created_at
		FROM audit_events ORDER BY created_at
	`
	return s.query(ctx, query)
}

// Clear drops all events except critical-action records.
func (s *Store) Clear(ctx context.Context) error {
	query := `DELETE FROM audit_events WHERE NOT (action = ANY($1))`
	if _, err := s.execer(ctx).ExecContext(ctx, query, pq.Array(audit.CriticalActions())); err != nil {
		return fmt.Errorf("clear audit events: %w", err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]audit.Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e       audit.Event
			actorID uuid.UUID
		)
		if err := rows.Scan(&actorID, &e.Role, &e.Action, &e.FromState, &e.ToState, &e.TargetID, &e.Note, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ActorID = domain.UserID(actorID)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
