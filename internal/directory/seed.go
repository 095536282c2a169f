package directory

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"certflow/pkg/domain"
)

// SeedAccounts creates one account per role for a fresh deployment. Existing
// accounts with the same email are left untouched, so the seed is safe to run
// on every start.
func SeedAccounts(ctx context.Context, store Store, password string) error {
	accounts := []struct {
		email string
		name  string
		role  domain.Role
	}{
		{"admin@example.com", "Administrator", domain.RoleAdmin},
		{"operator@example.com", "Operator", domain.RoleOperator},
		{"applicant@example.com", "Applicant", domain.RoleApplicant},
		{"inspector@example.com", "Inspector", domain.RoleInspector},
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, acc := range accounts {
		if _, err := store.GetByEmail(ctx, acc.email); err == nil {
			continue
		}
		user := &User{
			ID:           domain.NewUserID(),
			Email:        acc.email,
			FullName:     acc.name,
			PasswordHash: hash,
			Role:         acc.role,
			CreatedAt:    now,
		}
		if err := store.Create(ctx, user); err != nil {
			return err
		}
	}
	return nil
}
