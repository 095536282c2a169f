package directory_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"certflow/internal/directory"
	"certflow/internal/directory/mocks"
	"certflow/internal/workflow"
	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	audit "certflow/pkg/platform/audit"
	"certflow/pkg/platform/sentinel"
)

// =============================================================================
// Directory Service Test Suite
// =============================================================================
// Justification for unit tests: account management is the only surface that
// writes credentials. Tests verify the admin-only guard, input validation,
// password hashing, conflict mapping, and audit event emission.

type capturingAuditor struct {
	events []audit.Event
}

func (c *capturingAuditor) Emit(_ context.Context, e audit.Event) error {
	c.events = append(c.events, e)
	return nil
}

type DirectoryServiceSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	mockStore *mocks.MockStore
	auditor   *capturingAuditor
	service   *directory.Service

	admin    workflow.Actor
	operator workflow.Actor
}

func TestDirectoryServiceSuite(t *testing.T) {
	suite.Run(t, new(DirectoryServiceSuite))
}

func (s *DirectoryServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.auditor = &capturingAuditor{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = directory.NewService(s.mockStore, s.auditor, logger)

	s.admin = workflow.Actor{ID: domain.NewUserID(), Role: domain.RoleAdmin}
	s.operator = workflow.Actor{ID: domain.NewUserID(), Role: domain.RoleOperator}
}

func (s *DirectoryServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *DirectoryServiceSuite) lastAuditAction() string {
	s.Require().NotEmpty(s.auditor.events)
	return s.auditor.events[len(s.auditor.events)-1].Action
}

// =============================================================================
// Create
// =============================================================================

func (s *DirectoryServiceSuite) TestCreate() {
	valid := directory.CreateInput{Email: "new@example.com", FullName: "New User", Password: "s3cret", Role: "operator"}

	s.Run("admin role required", func() {
		_, err := s.service.Create(s.ctx, s.operator, valid)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("email, name, and password are mandatory", func() {
		_, err := s.service.Create(s.ctx, s.admin, directory.CreateInput{Email: "  ", FullName: "X", Password: "p", Role: "operator"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.Create(s.ctx, s.admin, directory.CreateInput{Email: "a@b.c", Role: "operator"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown role is rejected", func() {
		in := valid
		in.Role = "overlord"
		_, err := s.service.Create(s.ctx, s.admin, in)
		s.Error(err)
	})

	s.Run("stores a bcrypt hash, never the password", func() {
		var saved *directory.User
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u *directory.User) error {
				saved = u
				return nil
			})

		user, err := s.service.Create(s.ctx, s.admin, valid)
		s.Require().NoError(err)
		s.Equal("new@example.com", user.Email)
		s.Equal(domain.RoleOperator, user.Role)

		s.Require().NotNil(saved)
		s.NotContains(string(saved.PasswordHash), "s3cret")
		s.NoError(bcrypt.CompareHashAndPassword(saved.PasswordHash, []byte("s3cret")))
		s.Equal("create_user", s.lastAuditAction())
	})

	s.Run("duplicate email maps to conflict", func() {
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		_, err := s.service.Create(s.ctx, s.admin, valid)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("store failures surface as internal", func() {
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
		_, err := s.service.Create(s.ctx, s.admin, valid)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

// =============================================================================
// Password and Name Changes
// =============================================================================

func (s *DirectoryServiceSuite) TestChangePassword() {
	id := domain.NewUserID()
	existing := &directory.User{ID: id, Email: "u@example.com", FullName: "U", Role: domain.RoleOperator}

	s.Run("admin role required", func() {
		err := s.service.ChangePassword(s.ctx, s.operator, id, "x")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("password is mandatory", func() {
		err := s.service.ChangePassword(s.ctx, s.admin, id, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown user maps to not found", func() {
		s.mockStore.EXPECT().Get(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)
		err := s.service.ChangePassword(s.ctx, s.admin, id, "newpass")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rehashes and updates", func() {
		s.mockStore.EXPECT().Get(gomock.Any(), id).Return(existing.Clone(), nil)
		var updated *directory.User
		s.mockStore.EXPECT().Update(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u *directory.User) error {
				updated = u
				return nil
			})

		s.Require().NoError(s.service.ChangePassword(s.ctx, s.admin, id, "newpass"))
		s.Require().NotNil(updated)
		s.NoError(bcrypt.CompareHashAndPassword(updated.PasswordHash, []byte("newpass")))
		s.Equal("change_user_password", s.lastAuditAction())
	})
}

func (s *DirectoryServiceSuite) TestRename() {
	id := domain.NewUserID()
	existing := &directory.User{ID: id, Email: "u@example.com", FullName: "Old Name", Role: domain.RoleOperator}

	s.Run("name is mandatory", func() {
		err := s.service.Rename(s.ctx, s.admin, id, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("updates the display name", func() {
		s.mockStore.EXPECT().Get(gomock.Any(), id).Return(existing.Clone(), nil)
		var updated *directory.User
		s.mockStore.EXPECT().Update(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u *directory.User) error {
				updated = u
				return nil
			})

		s.Require().NoError(s.service.Rename(s.ctx, s.admin, id, "New Name"))
		s.Require().NotNil(updated)
		s.Equal("New Name", updated.FullName)
		s.Equal("change_user_name", s.lastAuditAction())
	})
}

// =============================================================================
// Reads
// =============================================================================

func (s *DirectoryServiceSuite) TestListAndGet() {
	s.Run("list is admin only", func() {
		_, err := s.service.List(s.ctx, s.operator)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("list propagates store errors as internal", func() {
		s.mockStore.EXPECT().List(gomock.Any()).Return(nil, errors.New("connection reset"))
		_, err := s.service.List(s.ctx, s.admin)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("get maps missing users to not found", func() {
		id := domain.NewUserID()
		s.mockStore.EXPECT().Get(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Get(s.ctx, s.admin, id)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
