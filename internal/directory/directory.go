// Package directory is the user registry: credentials, roles, and login
// bookkeeping for the certification bureau's accounts.
package directory

//go:generate mockgen -source=directory.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"time"

	"certflow/pkg/domain"
)

// User is one account in the bureau.
type User struct {
	ID           domain.UserID
	Email        string
	FullName     string
	PasswordHash []byte
	Role         domain.Role
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.PasswordHash = append([]byte(nil), u.PasswordHash...)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		cp.LastLoginAt = &t
	}
	return &cp
}

// Store persists users.
type Store interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id domain.UserID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, user *User) error
	StampLogin(ctx context.Context, id domain.UserID, at time.Time) error
}
