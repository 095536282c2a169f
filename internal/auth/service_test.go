package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"certflow/internal/auth/jwtoken"
	"certflow/internal/auth/revocation"
	"certflow/internal/directory"
	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	audit "certflow/pkg/platform/audit"
)

// =============================================================================
// Auth Service Test Suite
// =============================================================================
// Justification for unit tests: login is the trust boundary of the whole API.
// Tests verify credential checking, token issuance and validation, revocation
// on logout, and the account re-checks performed on every authentication.

type auditLog struct {
	events []audit.Event
}

func (a *auditLog) Emit(_ context.Context, e audit.Event) error {
	a.events = append(a.events, e)
	return nil
}

type AuthServiceSuite struct {
	suite.Suite
	ctx     context.Context
	users   *directory.InMemoryStore
	auditor *auditLog
	service *Service

	operator *directory.User
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.users = directory.NewInMemoryStore()
	s.auditor = &auditLog{}
	s.service = NewService(Deps{
		Users:    s.users,
		Tokens:   jwtoken.NewJWTService("test-signing-key", "certflow", "certflow-api"),
		Revoked:  revocation.NewMemoryTRL(),
		Audit:    s.auditor,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		TokenTTL: time.Hour,
	})

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	s.Require().NoError(err)
	s.operator = &directory.User{
		ID:           domain.NewUserID(),
		Email:        "op@example.com",
		FullName:     "Operator",
		PasswordHash: hash,
		Role:         domain.RoleOperator,
		CreatedAt:    time.Now().UTC(),
	}
	s.Require().NoError(s.users.Create(s.ctx, s.operator))
}

func (s *AuthServiceSuite) login() *Session {
	session, err := s.service.Login(s.ctx, "op@example.com", "correct horse", "")
	s.Require().NoError(err)
	return session
}

func (s *AuthServiceSuite) TestLogin() {
	s.Run("unknown email reads as invalid credentials", func() {
		_, err := s.service.Login(s.ctx, "ghost@example.com", "whatever", "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("wrong password reads as invalid credentials", func() {
		_, err := s.service.Login(s.ctx, "op@example.com", "incorrect horse", "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("valid credentials issue a usable token", func() {
		session := s.login()
		s.NotEmpty(session.Token)
		s.Equal(s.operator.ID, session.User.ID)

		actor, err := s.service.Authenticate(s.ctx, session.Token)
		s.Require().NoError(err)
		s.Equal(s.operator.ID, actor.ID)
		s.Equal(domain.RoleOperator, actor.Role)

		stamped, err := s.users.Get(s.ctx, s.operator.ID)
		s.Require().NoError(err)
		s.NotNil(stamped.LastLoginAt)
	})

	s.Run("device label lands in the audit trail", func() {
		_, err := s.service.Login(s.ctx, "op@example.com", "correct horse",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		s.Require().NoError(err)

		last := s.auditor.events[len(s.auditor.events)-1]
		s.Equal("login", last.Action)
		s.Contains(last.Note, "Chrome")
		s.Contains(last.Note, "Windows")
	})
}

func (s *AuthServiceSuite) TestLogoutRevokes() {
	session := s.login()

	s.Require().NoError(s.service.Logout(s.ctx, session.Token))

	_, err := s.service.Authenticate(s.ctx, session.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	// A fresh login issues a new token id; the old revocation does not leak.
	again := s.login()
	_, err = s.service.Authenticate(s.ctx, again.Token)
	s.NoError(err)
}

func (s *AuthServiceSuite) TestAuthenticate() {
	s.Run("garbage token is unauthorized", func() {
		_, err := s.service.Authenticate(s.ctx, "not-a-jwt")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("token signed with another key is unauthorized", func() {
		other := jwtoken.NewJWTService("different-key", "certflow", "certflow-api")
		forged, err := other.GenerateAccessToken(s.operator.ID, domain.RoleAdmin, time.Hour)
		s.Require().NoError(err)

		_, authErr := s.service.Authenticate(s.ctx, forged)
		s.True(dErrors.HasCode(authErr, dErrors.CodeUnauthorized))
	})

	s.Run("role change invalidates old tokens", func() {
		session := s.login()

		changed := s.operator.Clone()
		changed.Role = domain.RoleAdmin
		s.Require().NoError(s.users.Update(s.ctx, changed))
		_, err := s.service.Authenticate(s.ctx, session.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		changed.Role = domain.RoleOperator
		s.Require().NoError(s.users.Update(s.ctx, changed))
	})

	s.Run("token survives only while the account does", func() {
		session := s.login()

		s.service.users = directory.NewInMemoryStore() // account gone
		_, err := s.service.Authenticate(s.ctx, session.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *AuthServiceSuite) TestMe() {
	session := s.login()
	user, err := s.service.Me(s.ctx, session.Token)
	s.Require().NoError(err)
	s.Equal("op@example.com", user.Email)
}
