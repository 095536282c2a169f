package inspection

import (
	"context"

	"certflow/pkg/domain"
)

// Store persists inspection records. Implementations return
// sentinel.ErrNotFound for unknown ids.
type Store interface {
	Save(ctx context.Context, i *Inspection) error
	Get(ctx context.Context, id domain.InspectionID) (*Inspection, error)
	Delete(ctx context.Context, id domain.InspectionID) error
	List(ctx context.Context) ([]*Inspection, error)
	ListByApplication(ctx context.Context, appID domain.ApplicationID) ([]*Inspection, error)
}
