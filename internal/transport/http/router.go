package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"certflow/pkg/domain"
	authmw "certflow/pkg/platform/middleware/auth"
	"certflow/pkg/platform/middleware/metadata"
	"certflow/pkg/platform/middleware/requestid"
	"certflow/pkg/platform/middleware/requesttime"
)

// identityAdapter bridges the auth service onto the middleware's
// Authenticator port.
type identityAdapter struct {
	handler *Handler
}

func (a identityAdapter) Identify(ctx context.Context, token string) (authmw.Identity, error) {
	actor, err := a.handler.auth.Authenticate(ctx, token)
	if err != nil {
		return authmw.Identity{}, err
	}
	return authmw.Identity{UserID: actor.ID, Role: actor.Role}, nil
}

// NewRouter wires all public endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	requireAuth := authmw.RequireAuth(identityAdapter{h}, h.logger)
	adminOnly := authmw.RequireRole(h.logger, domain.RoleAdmin)
	inspectorOnly := authmw.RequireRole(h.logger, domain.RoleInspector, domain.RoleAdmin)
	applicantOnly := authmw.RequireRole(h.logger, domain.RoleApplicant)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/logout", h.handleLogout)
			r.Get("/me", h.handleMe)

			r.Route("/applications", func(r chi.Router) {
				r.With(applicantOnly).Post("/", h.handleCreateApplication)
				r.Get("/", h.handleListApplications)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.handleGetApplication)
					r.Delete("/", h.handleDeleteApplication)
					r.Get("/actions", h.handleAllowedActions)
					r.Post("/commands", h.handleExecuteCommand)
					r.Get("/tests", h.handleListTests)
					r.Get("/certificate", h.handleGetCertificate)
					r.Post("/documents", h.handleAttachDocument)

					r.Get("/inspections", h.handleListApplicationInspections)
					r.Group(func(r chi.Router) {
						r.Use(inspectorOnly)
						r.Post("/inspections", h.handlePlanInspection)
						r.Post("/inspections/deny", h.handleDenyInspection)
						r.Post("/inspections/conduct-now", h.handleConductInspectionNow)
						r.Post("/inspections/reschedule", h.handleRescheduleInspection)
					})
					// Either party signs; the service enforces role and order.
					r.Post("/inspections/sign", h.handleSignInspection)
				})
			})

			r.Route("/inspections", func(r chi.Router) {
				r.Use(inspectorOnly)
				r.Get("/", h.handleListInspections)
				r.Get("/{id}", h.handleGetInspection)
				r.Post("/{id}/cancel", h.handleCancelInspection)
				r.Post("/{id}/complete", h.handleCompleteInspection)
			})

			r.Post("/files", h.handleUploadFile)
			r.Get("/files/{id}", h.handleGetFile)

			r.Route("/users", func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", h.handleListUsers)
				r.Post("/", h.handleCreateUser)
				r.Put("/{id}/password", h.handleChangeUserPassword)
				r.Put("/{id}/name", h.handleRenameUser)
			})

			r.Get("/logs", h.handleListAuditEvents)
			r.With(adminOnly).Delete("/logs", h.handleClearAuditEvents)
		})
	})

	return r
}
