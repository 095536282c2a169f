package workflow

import (
	"context"
	"sync"
	"time"

	"certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
)

// Locker serializes mutations on a single application so that read-decide-
// write command execution is all-or-nothing with respect to concurrent
// commands on the same application. The workflow and inspection services
// share one Locker instance.
type Locker interface {
	WithLock(ctx context.Context, id domain.ApplicationID, fn func(ctx context.Context) error) error
}

// shardedLocker distributes applications across N mutexes by an FNV-1a hash
// of the application id, so unrelated applications never contend.
const numLockShards = 128

// defaultLockTimeout bounds how long a command may hold an application lock.
const defaultLockTimeout = 5 * time.Second

type ShardedLocker struct {
	shards  [numLockShards]sync.Mutex
	timeout time.Duration
}

func NewShardedLocker() *ShardedLocker {
	return &ShardedLocker{timeout: defaultLockTimeout}
}

func (l *ShardedLocker) WithLock(ctx context.Context, id domain.ApplicationID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "command aborted: context cancelled")
	}

	timeout := l.timeout
	if timeout == 0 {
		timeout = defaultLockTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashFNV1a(id.String()) % numLockShards
	l.shards[shard].Lock()
	defer l.shards[shard].Unlock()

	// Re-check after acquiring: the caller may have timed out while queued.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "command aborted: context cancelled")
	}

	return fn(ctx)
}

func hashFNV1a(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
