package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certflow/internal/auth"
	"certflow/internal/auth/jwtoken"
	"certflow/internal/auth/revocation"
	"certflow/internal/certificate"
	"certflow/internal/directory"
	"certflow/internal/docstore"
	"certflow/internal/inspection"
	"certflow/internal/workflow"
	"certflow/pkg/platform/audit/publisher"
	memorystore "certflow/pkg/platform/audit/store/memory"
	"certflow/pkg/testutil"
)

// =============================================================================
// HTTP API Test Suite
// =============================================================================
// Justification for end-to-end tests: the router composes authentication,
// role middleware, and handler decoding on top of the domain services. These
// tests drive real requests through the full in-memory stack and assert the
// wire-level contract: status codes, JSON envelopes, and error shapes.

type APISuite struct {
	suite.Suite
	ctx    context.Context
	router http.Handler
	users  *directory.InMemoryStore

	applicantToken string
	operatorToken  string
	inspectorToken string
	adminToken     string
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	auditStore := memorystore.NewInMemoryStore()
	pub := publisher.NewPublisher(auditStore)

	s.users = directory.NewInMemoryStore()
	s.Require().NoError(directory.SeedAccounts(s.ctx, s.users, "password"))

	locker := workflow.NewShardedLocker()
	wfStore := workflow.NewInMemoryStore()
	certStore := certificate.NewMemoryStore()
	fileStore := docstore.NewInMemoryStore()

	wfSvc := workflow.NewService(workflow.Deps{
		Store:       wfStore,
		Locker:      locker,
		Audit:       pub,
		Logger:      logger,
		Certs:       certStore,
		Renderer:    certificate.NewTextRenderer("Test Bureau"),
		Numbers:     func() string { return "CERT-000042" },
		Files:       fileStore,
		ScoreSource: func(string) int { return 85 },
	})
	inspSvc := inspection.NewService(inspection.Deps{
		Store:  inspection.NewInMemoryStore(),
		Apps:   wfStore,
		Locker: locker,
		Audit:  pub,
		Logger: logger,
	})
	wfSvc.SetPurger(inspSvc)

	authSvc := auth.NewService(auth.Deps{
		Users:    s.users,
		Tokens:   jwtoken.NewJWTService("test-signing-key", "certflow", "certflow-api"),
		Revoked:  revocation.NewMemoryTRL(),
		Audit:    pub,
		Logger:   logger,
		TokenTTL: time.Hour,
	})

	handler := NewHandler(Deps{
		Workflow:    wfSvc,
		Inspections: inspSvc,
		Auth:        authSvc,
		Users:       directory.NewService(s.users, pub, logger),
		Files:       fileStore,
		Certs:       certStore,
		Publisher:   pub,
		AuditStore:  auditStore,
		Logger:      logger,
	})
	s.router = NewRouter(handler)

	s.applicantToken = s.login("applicant@example.com")
	s.operatorToken = s.login("operator@example.com")
	s.inspectorToken = s.login("inspector@example.com")
	s.adminToken = s.login("admin@example.com")
}

func (s *APISuite) login(email string) string {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/login",
		map[string]string{"email": email, "password": "password"})
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[loginResponse](s.T(), rr)
	return resp.Token
}

func (s *APISuite) do(method, path, token string, body any) *httpResult {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	} else {
		req = testutil.NewRequest(s.T(), method, path)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := testutil.DoRequest(s.router, req)
	return &httpResult{suite: s, rr: rr, code: rr.Code, body: rr.Body.String()}
}

type httpResult struct {
	suite *APISuite
	rr    *httptest.ResponseRecorder
	code  int
	body  string
}

func (r *httpResult) expect(status int) *httpResult {
	r.suite.Require().Equal(status, r.code, r.body)
	return r
}

func (r *httpResult) expectError(status int, code string) {
	testutil.AssertStatusAndError(r.suite.T(), r.rr, status, code)
}

func (r *httpResult) json(dst any) {
	r.suite.Require().NoError(json.Unmarshal([]byte(r.body), dst), r.body)
}

// =============================================================================
// Authentication and Authorization
// =============================================================================

func (s *APISuite) TestHealthz() {
	s.do(http.MethodGet, "/healthz", "", nil).expect(http.StatusOK)
}

func (s *APISuite) TestLogin() {
	s.Run("wrong password is unauthorized", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/login",
			map[string]string{"email": "admin@example.com", "password": "nope"})
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
		s.Contains(rr.Body.String(), "invalid credentials")
	})

	s.Run("malformed body is a bad request", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/login", "{not json")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("token resolves through /api/me", func() {
		var resp struct {
			User userResponse `json:"user"`
		}
		s.do(http.MethodGet, "/api/me", s.operatorToken, nil).expect(http.StatusOK).json(&resp)
		s.Equal("operator@example.com", resp.User.Email)
		s.Equal("operator", resp.User.Role)
	})
}

func (s *APISuite) TestAuthRequired() {
	s.do(http.MethodGet, "/api/applications", "", nil).expect(http.StatusUnauthorized)
	s.do(http.MethodGet, "/api/applications", "garbage-token", nil).expect(http.StatusUnauthorized)
}

func (s *APISuite) TestRoleEnforcement() {
	s.Run("user management is admin only", func() {
		s.do(http.MethodGet, "/api/users", s.applicantToken, nil).expect(http.StatusForbidden)
		s.do(http.MethodGet, "/api/users", s.adminToken, nil).expect(http.StatusOK)
	})

	s.Run("only applicants open applications", func() {
		s.do(http.MethodPost, "/api/applications", s.operatorToken,
			map[string]string{"productName": "Widget"}).expect(http.StatusForbidden)
	})

	s.Run("audit clearing is admin only", func() {
		s.do(http.MethodDelete, "/api/logs", s.operatorToken, nil).expect(http.StatusForbidden)
		s.do(http.MethodDelete, "/api/logs", s.adminToken, nil).expect(http.StatusOK)
	})
}

func (s *APISuite) TestLogoutRevokesToken() {
	token := s.login("applicant@example.com")
	s.do(http.MethodPost, "/api/logout", token, nil).expect(http.StatusOK)
	s.do(http.MethodGet, "/api/me", token, nil).expect(http.StatusUnauthorized)
}

// =============================================================================
// Application Lifecycle over HTTP
// =============================================================================

func (s *APISuite) createApplication(productType string) string {
	var resp struct {
		Application applicationResponse `json:"application"`
	}
	s.do(http.MethodPost, "/api/applications", s.applicantToken,
		map[string]string{"productName": "Widget", "productType": productType}).
		expect(http.StatusCreated).json(&resp)
	return resp.Application.ID
}

func (s *APISuite) uploadFile() string {
	var resp struct {
		File fileResponse `json:"file"`
	}
	s.do(http.MethodPost, "/api/files", s.applicantToken, map[string]any{
		"name":        "passport.pdf",
		"contentType": "application/pdf",
		"data":        []byte("fake pdf bytes"),
	}).expect(http.StatusCreated).json(&resp)
	return resp.File.ID
}

func (s *APISuite) execCommand(appID, token string, body map[string]any) *httpResult {
	return s.do(http.MethodPost, fmt.Sprintf("/api/applications/%s/commands", appID), token, body)
}

func (s *APISuite) TestApplicationLifecycle() {
	appID := s.createApplication("single")
	fileID := s.uploadFile()

	s.do(http.MethodPost, fmt.Sprintf("/api/applications/%s/documents", appID), s.applicantToken,
		map[string]string{"fileId": fileID}).expect(http.StatusOK)

	// The gate advertises submission on a documented draft.
	var actions struct {
		Actions []workflow.Action `json:"actions"`
	}
	s.do(http.MethodGet, fmt.Sprintf("/api/applications/%s/actions", appID), s.applicantToken, nil).
		expect(http.StatusOK).json(&actions)
	s.Require().Len(actions.Actions, 1)
	s.Equal(workflow.CommandSubmitDocs, actions.Actions[0].Action)

	var cmdResp commandResponse
	s.execCommand(appID, s.applicantToken, map[string]any{"command": "submit_docs"}).
		expect(http.StatusOK).json(&cmdResp)
	s.Equal("submitted_docs", cmdResp.State)

	// No certificate exists yet.
	s.do(http.MethodGet, fmt.Sprintf("/api/applications/%s/certificate", appID), s.applicantToken, nil).
		expect(http.StatusNotFound)

	s.execCommand(appID, s.operatorToken, map[string]any{"command": "analyze_docs", "score": 80}).
		expect(http.StatusOK).json(&cmdResp)
	s.Equal("pre_tests_decision", cmdResp.State)

	s.execCommand(appID, s.operatorToken, map[string]any{"command": "pre_tests_decision", "decision": "certification_tests"}).
		expect(http.StatusOK)
	s.execCommand(appID, s.operatorToken, map[string]any{"command": "run_certification_tests"}).
		expect(http.StatusOK).json(&cmdResp)
	s.Require().Len(cmdResp.Tests, 1)

	s.execCommand(appID, s.operatorToken, map[string]any{
		"command":       "input_certification_data",
		"certification": map[string]any{"protocolNumber": "P-1", "result": "conforms", "score": 85},
	}).expect(http.StatusOK)
	s.execCommand(appID, s.operatorToken, map[string]any{"command": "issue_protocols"}).expect(http.StatusOK)
	s.execCommand(appID, s.operatorToken, map[string]any{"command": "analyze_results"}).
		expect(http.StatusOK).json(&cmdResp)
	s.Equal("approved", cmdResp.State)

	s.execCommand(appID, s.operatorToken, map[string]any{"command": "generate_certificate"}).
		expect(http.StatusOK).json(&cmdResp)
	s.Require().NotNil(cmdResp.Certificate)
	s.Equal("CERT-000042", cmdResp.Certificate.Number)

	// The certificate is now retrievable by the owner.
	s.do(http.MethodGet, fmt.Sprintf("/api/applications/%s/certificate", appID), s.applicantToken, nil).
		expect(http.StatusOK)

	s.execCommand(appID, s.operatorToken, map[string]any{"command": "register"}).
		expect(http.StatusOK).json(&cmdResp)
	s.Equal("closed", cmdResp.State)
}

func (s *APISuite) TestCommandErrorShapes() {
	appID := s.createApplication("single")

	s.Run("unknown command is a bad request", func() {
		s.execCommand(appID, s.applicantToken, map[string]any{"command": "teleport"}).
			expectError(http.StatusBadRequest, "validation")
	})

	s.Run("state guard violations map to conflict", func() {
		// analyze_docs is not legal on a draft.
		s.execCommand(appID, s.operatorToken, map[string]any{"command": "analyze_docs", "score": 80}).
			expectError(http.StatusConflict, "invalid_state")
	})

	s.Run("role guard violations map to forbidden", func() {
		s.execCommand(appID, s.inspectorToken, map[string]any{"command": "analyze_docs", "score": 80}).
			expectError(http.StatusForbidden, "forbidden")
	})

	s.Run("unknown application maps to not found", func() {
		s.do(http.MethodGet, "/api/applications/00000000-0000-0000-0000-000000000001", s.operatorToken, nil).
			expect(http.StatusNotFound)
	})
}

func (s *APISuite) TestApplicationVisibility() {
	appID := s.createApplication("single")

	// Staff see everything; other endpoints inherit the same rule.
	var list struct {
		Applications []applicationResponse `json:"applications"`
	}
	s.do(http.MethodGet, "/api/applications", s.operatorToken, nil).
		expect(http.StatusOK).json(&list)
	s.Require().Len(list.Applications, 1)
	s.Equal(appID, list.Applications[0].ID)
}

// =============================================================================
// Inspection Endpoints
// =============================================================================

func (s *APISuite) TestInspectionEndpoints() {
	appID := s.createApplication("serial")

	// Force the application into the inspection phase.
	s.execCommand(appID, s.adminToken, map[string]any{"command": "admin_force", "toState": "awaiting_inspection"}).
		expect(http.StatusOK)

	s.Run("planning is an inspector surface", func() {
		s.do(http.MethodPost, fmt.Sprintf("/api/applications/%s/inspections", appID), s.applicantToken,
			map[string]any{"date": "2026-04-01", "orderSigned": true}).expect(http.StatusForbidden)
	})

	var planned struct {
		Inspection inspectionResponse `json:"inspection"`
	}
	s.do(http.MethodPost, fmt.Sprintf("/api/applications/%s/inspections", appID), s.inspectorToken,
		map[string]any{"date": "2026-04-01", "responsible": "I. Petrenko", "orderSigned": true}).
		expect(http.StatusOK).json(&planned)
	s.Equal("planned", planned.Inspection.Status)
	s.Equal("primary", planned.Inspection.Type)

	s.Run("owner sees the application's inspections", func() {
		var list struct {
			Inspections []inspectionResponse `json:"inspections"`
		}
		s.do(http.MethodGet, fmt.Sprintf("/api/applications/%s/inspections", appID), s.applicantToken, nil).
			expect(http.StatusOK).json(&list)
		s.Require().Len(list.Inspections, 1)
	})

	s.do(http.MethodPost, fmt.Sprintf("/api/inspections/%s/complete", planned.Inspection.ID), s.inspectorToken,
		map[string]any{"checklist": map[string]bool{"documentsOk": true, "processOk": true, "productOk": true}}).
		expect(http.StatusOK)

	// Completed report: inspector signs first, then the applicant.
	signPath := fmt.Sprintf("/api/applications/%s/inspections/sign", appID)
	s.do(http.MethodPost, signPath, s.applicantToken, map[string]string{"signedBy": "applicant"}).
		expect(http.StatusConflict)
	s.do(http.MethodPost, signPath, s.inspectorToken, map[string]string{"signedBy": "inspector"}).
		expect(http.StatusOK)
	s.do(http.MethodPost, signPath, s.applicantToken, map[string]string{"signedBy": "applicant"}).
		expect(http.StatusOK)
}

// =============================================================================
// Audit Trail
// =============================================================================

func (s *APISuite) TestAuditLogs() {
	appID := s.createApplication("single")

	var logs struct {
		Events []auditEventResponse `json:"events"`
	}
	s.do(http.MethodGet, "/api/logs?target="+appID, s.operatorToken, nil).
		expect(http.StatusOK).json(&logs)
	s.Require().NotEmpty(logs.Events)
	s.Equal("create_application", logs.Events[0].Action)
}
