package workflow

import (
	"context"

	"certflow/pkg/domain"
)

// Store persists applications and their owned test records. Implementations
// return sentinel.ErrNotFound for unknown ids; the service wraps that into
// the domain error taxonomy at its boundary.
type Store interface {
	Create(ctx context.Context, app *Application) error
	Get(ctx context.Context, id domain.ApplicationID) (*Application, error)
	Update(ctx context.Context, app *Application) error
	Delete(ctx context.Context, id domain.ApplicationID) error
	List(ctx context.Context) ([]*Application, error)
	ListByApplicant(ctx context.Context, applicantID domain.UserID) ([]*Application, error)

	// UpsertTest saves a test record keyed by (applicationID, key): a second
	// save for the same key updates the existing record in place.
	UpsertTest(ctx context.Context, t *Test) error
	ListTests(ctx context.Context, appID domain.ApplicationID) ([]*Test, error)
	DeleteTests(ctx context.Context, appID domain.ApplicationID) error
}
