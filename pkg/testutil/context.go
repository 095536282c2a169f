package testutil

import (
	"net/http"

	"certflow/pkg/domain"
	"certflow/pkg/requestcontext"
)

// WithIdentity adds a user ID and role to the request context, simulating
// what the auth middleware does for authenticated requests. An unparsable
// user ID is silently ignored.
func WithIdentity(req *http.Request, userID string, role domain.Role) *http.Request {
	ctx := req.Context()
	if parsed, err := domain.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithUserID(ctx, parsed)
	}
	if role != "" {
		ctx = requestcontext.WithRole(ctx, role)
	}
	return req.WithContext(ctx)
}

// WithActor is WithIdentity for already-typed IDs.
func WithActor(req *http.Request, userID domain.UserID, role domain.Role) *http.Request {
	ctx := requestcontext.WithRole(requestcontext.WithUserID(req.Context(), userID), role)
	return req.WithContext(ctx)
}
