// Package auth implements login, logout, and bearer-token authentication on
// top of the user directory.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mssola/useragent"
	"golang.org/x/crypto/bcrypt"

	"certflow/internal/auth/jwtoken"
	"certflow/internal/auth/revocation"
	"certflow/internal/directory"
	"certflow/internal/workflow"
	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/platform/audit"
	"certflow/pkg/platform/sentinel"
)

const defaultAccessTokenTTL = 12 * time.Hour

// Service authenticates users and issues access tokens.
type Service struct {
	users    directory.Store
	tokens   *jwtoken.JWTService
	revoked  revocation.TokenRevocationList
	auditor  workflow.AuditPublisher
	logger   *slog.Logger
	tokenTTL time.Duration
	now      func() time.Time
}

type Deps struct {
	Users    directory.Store
	Tokens   *jwtoken.JWTService
	Revoked  revocation.TokenRevocationList
	Audit    workflow.AuditPublisher
	Logger   *slog.Logger
	TokenTTL time.Duration
}

func NewService(deps Deps) *Service {
	s := &Service{
		users:    deps.Users,
		tokens:   deps.Tokens,
		revoked:  deps.Revoked,
		auditor:  deps.Audit,
		logger:   deps.Logger,
		tokenTTL: deps.TokenTTL,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = defaultAccessTokenTTL
	}
	s.now = func() time.Time { return time.Now().UTC() }
	return s
}

// Session is the result of a successful login.
type Session struct {
	Token string
	User  *directory.User
}

// Login verifies the credentials, stamps the login time, and issues an
// access token. The device description from the User-Agent header goes into
// the audit trail.
func (s *Service) Login(ctx context.Context, email, password, userAgent string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load user")
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, user.Role, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "issue token")
	}
	if err := s.users.StampLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.WarnContext(ctx, "failed to stamp login time", "user_id", user.ID, "error", err)
	}

	s.emit(ctx, user, "login", describeDevice(userAgent))
	return &Session{Token: token, User: user}, nil
}

// Logout revokes the presented token for its remaining lifetime.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return err
	}
	ttl := s.tokenTTL
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	if err := s.revoked.RevokeToken(ctx, claims.ID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke token")
	}

	if user, err := s.lookup(ctx, claims.UserID); err == nil {
		s.emit(ctx, user, "logout", "")
	}
	return nil
}

// Authenticate resolves a bearer token into an acting identity. The token
// must validate, must not be revoked, and the account must still exist with
// the role the token was issued for.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (workflow.Actor, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return workflow.Actor{}, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return workflow.Actor{}, dErrors.Wrap(err, dErrors.CodeInternal, "check token revocation")
	}
	if revoked {
		return workflow.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token has been revoked")
	}

	user, err := s.lookup(ctx, claims.UserID)
	if err != nil {
		return workflow.Actor{}, err
	}
	if user.Role.String() != claims.Role {
		return workflow.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token role no longer matches the account")
	}
	return workflow.Actor{ID: user.ID, Role: user.Role}, nil
}

// Me returns the account behind a bearer token.
func (s *Service) Me(ctx context.Context, tokenString string) (*directory.User, error) {
	actor, err := s.Authenticate(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	return s.users.Get(ctx, actor.ID)
}

func (s *Service) lookup(ctx context.Context, rawID string) (*directory.User, error) {
	id, err := domain.ParseUserID(rawID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	user, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "account no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load user")
	}
	return user, nil
}

func (s *Service) emit(ctx context.Context, user *directory.User, action, note string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Timestamp: s.now(),
		ActorID:   user.ID,
		Role:      user.Role.String(),
		Action:    action,
		TargetID:  user.ID.String(),
		Note:      note,
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

// describeDevice turns a raw User-Agent into a short human-readable label
// for the audit trail.
func describeDevice(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	label := name
	if version != "" {
		label += " " + version
	}
	if os := ua.OS(); os != "" {
		label += " on " + os
	}
	return label
}
