package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"certflow/pkg/domain"
	authmw "certflow/pkg/platform/middleware/auth"
	"certflow/pkg/requestcontext"
	"certflow/pkg/testutil"
)

// staticAuthenticator accepts exactly one token.
type staticAuthenticator struct {
	token    string
	identity authmw.Identity
}

func (a staticAuthenticator) Identify(_ context.Context, token string) (authmw.Identity, error) {
	if token != a.token {
		return authmw.Identity{}, errors.New("unknown token")
	}
	return a.identity, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequireAuth(t *testing.T) {
	identity := authmw.Identity{UserID: domain.UserID(uuid.New()), Role: domain.RoleOperator}
	mw := authmw.RequireAuth(staticAuthenticator{token: "good-token", identity: identity}, discardLogger())

	var seen authmw.Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.UserID = requestcontext.UserID(r.Context())
		seen.Role = requestcontext.Role(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	testutil.Given(t, "a request without a bearer token", func(t *testing.T) {
		rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodGet, "/"))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	testutil.Given(t, "a request with an unknown token", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/")
		req.Header.Set("Authorization", "Bearer bad-token")
		rr := testutil.DoRequest(handler, req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	testutil.Given(t, "a request with a valid token", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/")
		req.Header.Set("Authorization", "Bearer good-token")
		rr := testutil.DoRequest(handler, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, identity, seen, "identity should be stored in the request context")
	})
}

func TestRequireRole(t *testing.T) {
	mw := authmw.RequireRole(discardLogger(), domain.RoleAdmin, domain.RoleInspector)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	userID := domain.UserID(uuid.New())

	testutil.When(t, "the caller's role is not in the allow list", func(t *testing.T) {
		req := testutil.WithActor(testutil.NewRequest(t, http.MethodGet, "/"), userID, domain.RoleApplicant)
		rr := testutil.DoRequest(handler, req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})

	testutil.When(t, "no identity was stored at all", func(t *testing.T) {
		rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodGet, "/"))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})

	testutil.When(t, "the caller holds an allowed role", func(t *testing.T) {
		req := testutil.WithIdentity(testutil.NewRequest(t, http.MethodGet, "/"), userID.String(), domain.RoleInspector)
		rr := testutil.DoRequest(handler, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})
}
