// Package revocation tracks access tokens that were invalidated before
// their natural expiry, keyed by JWT ID.
package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"certflow/pkg/platform/sentinel"
)

// TokenRevocationList is the revocation interface the auth middleware and
// logout flow depend on.
type TokenRevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}

// MemoryTRL is an in-process revocation list for single-instance deployments
// and tests. Expired entries are dropped lazily on lookup.
type MemoryTRL struct {
	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

func NewMemoryTRL() *MemoryTRL {
	return &MemoryTRL{revoked: make(map[string]time.Time)}
}

func (t *MemoryTRL) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (t *MemoryTRL) IsRevoked(_ context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	expiry, ok := t.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(t.revoked, jti)
		return false, nil
	}
	return true, nil
}
