// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and encode; business rules stay out of this package.
package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certflow/internal/auth"
	"certflow/internal/certificate"
	"certflow/internal/directory"
	"certflow/internal/docstore"
	"certflow/internal/inspection"
	"certflow/internal/workflow"
	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/platform/audit"
	"certflow/pkg/platform/audit/publisher"
	"certflow/pkg/requestcontext"
)

type Handler struct {
	workflow    *workflow.Service
	inspections *inspection.Service
	auth        *auth.Service
	users       *directory.Service
	files       docstore.Store
	certs       certificate.Store
	publisher   *publisher.Publisher
	auditStore  audit.Store
	logger      *slog.Logger
}

type Deps struct {
	Workflow    *workflow.Service
	Inspections *inspection.Service
	Auth        *auth.Service
	Users       *directory.Service
	Files       docstore.Store
	Certs       certificate.Store
	Publisher   *publisher.Publisher
	AuditStore  audit.Store
	Logger      *slog.Logger
}

func NewHandler(deps Deps) *Handler {
	h := &Handler{
		workflow:    deps.Workflow,
		inspections: deps.Inspections,
		auth:        deps.Auth,
		users:       deps.Users,
		files:       deps.Files,
		certs:       deps.Certs,
		publisher:   deps.Publisher,
		auditStore:  deps.AuditStore,
		logger:      deps.Logger,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// actorFrom reads the identity RequireAuth stored in the context.
func actorFrom(r *http.Request) workflow.Actor {
	ctx := r.Context()
	return workflow.Actor{
		ID:   requestcontext.UserID(ctx),
		Role: requestcontext.Role(ctx),
	}
}

func applicationIDParam(r *http.Request) (domain.ApplicationID, error) {
	return domain.ParseApplicationID(chi.URLParam(r, "id"))
}

func inspectionIDParam(r *http.Request) (domain.InspectionID, error) {
	return domain.ParseInspectionID(chi.URLParam(r, "id"))
}

// decode unmarshals the JSON body into dst, mapping malformed bodies onto a
// bad-request error.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid JSON body")
	}
	return nil
}
