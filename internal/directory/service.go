package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"certflow/internal/workflow"
	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/platform/audit"
	"certflow/pkg/platform/sentinel"
)

// Service is the admin-facing account management surface. Every mutation is
// admin-only and audited.
type Service struct {
	store   Store
	auditor workflow.AuditPublisher
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store Store, auditor workflow.AuditPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		auditor: auditor,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput carries the new-account form.
type CreateInput struct {
	Email    string
	FullName string
	Password string
	Role     string
}

// Create registers a new account.
func (s *Service) Create(ctx context.Context, actor workflow.Actor, in CreateInput) (*User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.FullName == "" || in.Password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email, full name, and password are required")
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}
	user := &User{
		ID:           domain.NewUserID(),
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create user")
	}
	s.emit(ctx, actor, "create_user", user.ID, "role "+role.String())
	return user, nil
}

// ChangePassword replaces an account's password.
func (s *Service) ChangePassword(ctx context.Context, actor workflow.Actor, id domain.UserID, password string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}
	user.PasswordHash = hash
	if err := s.store.Update(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update user")
	}
	s.emit(ctx, actor, "change_user_password", id, "")
	return nil
}

// Rename changes an account's display name.
func (s *Service) Rename(ctx context.Context, actor workflow.Actor, id domain.UserID, fullName string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if fullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full name is required")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	user.FullName = fullName
	if err := s.store.Update(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update user")
	}
	s.emit(ctx, actor, "change_user_name", id, fullName)
	return nil
}

// List returns all accounts, admin only.
func (s *Service) List(ctx context.Context, actor workflow.Actor) ([]*User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list users")
	}
	return users, nil
}

// Get returns one account, admin only.
func (s *Service) Get(ctx context.Context, actor workflow.Actor, id domain.UserID) (*User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id domain.UserID) (*User, error) {
	user, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load user")
	}
	return user, nil
}

func (s *Service) emit(ctx context.Context, actor workflow.Actor, action string, target domain.UserID, note string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Timestamp: s.now(),
		ActorID:   actor.ID,
		Role:      actor.Role.String(),
		Action:    action,
		TargetID:  target.String(),
		Note:      note,
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

func requireAdmin(actor workflow.Actor) error {
	if actor.Role != domain.RoleAdmin {
		return dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	return nil
}
