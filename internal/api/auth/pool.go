package auth

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// HashPool bounds how many hash computations run at once so a burst of logins
// cannot starve the rest of the server of CPU. Waiting honours ctx.
type HashPool struct {
	hasher Hasher
	sem    *semaphore.Weighted
}

// NewHashPool wraps hasher, allowing at most size concurrent calls.
func NewHashPool(hasher Hasher, size int64) *HashPool {
	if size < 1 {
		size = 1
	}
	return &HashPool{hasher: hasher, sem: semaphore.NewWeighted(size)}
}

func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for hash worker: %w", err)
	}
	defer p.sem.Release(1)
	return p.hasher.Hash(password)
}

func (p *HashPool) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("waiting for hash worker: %w", err)
	}
	defer p.sem.Release(1)
	return p.hasher.Verify(password, hash)
}
