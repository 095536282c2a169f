//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certflow/internal/auth/revocation"
	"certflow/pkg/testutil/containers"
)

type RedisTRLSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	trl   *revocation.RedisTRL
}

func TestRedisTRLSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	s := new(RedisTRLSuite)
	s.redis = containers.NewRedisContainer(t)
	suite.Run(t, s)
}

func (s *RedisTRLSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.trl = revocation.NewRedisTRL(s.redis.Client)
}

func (s *RedisTRLSuite) TestRevokeAndCheck() {
	ctx := context.Background()

	revoked, err := s.trl.IsRevoked(ctx, "jti-1")
	s.Require().NoError(err)
	s.False(revoked)

	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-1", time.Minute))

	revoked, err = s.trl.IsRevoked(ctx, "jti-1")
	s.Require().NoError(err)
	s.True(revoked)

	// Other tokens are unaffected.
	revoked, err = s.trl.IsRevoked(ctx, "jti-2")
	s.Require().NoError(err)
	s.False(revoked)
}

func (s *RedisTRLSuite) TestRevocationExpires() {
	ctx := context.Background()

	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-short", 100*time.Millisecond))

	revoked, err := s.trl.IsRevoked(ctx, "jti-short")
	s.Require().NoError(err)
	s.True(revoked)

	time.Sleep(200 * time.Millisecond)

	revoked, err = s.trl.IsRevoked(ctx, "jti-short")
	s.Require().NoError(err)
	s.False(revoked)
}

func (s *RedisTRLSuite) TestInvalidTTLRejected() {
	ctx := context.Background()
	s.Error(s.trl.RevokeToken(ctx, "jti-bad", -time.Second))
}

func (s *RedisTRLSuite) TestEmptyJTIIsNoop() {
	ctx := context.Background()
	s.Require().NoError(s.trl.RevokeToken(ctx, "", time.Minute))
	revoked, err := s.trl.IsRevoked(ctx, "")
	s.Require().NoError(err)
	s.False(revoked)
}
