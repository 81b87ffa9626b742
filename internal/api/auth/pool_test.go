package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// slowHasher records how many calls overlap.
type slowHasher struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	mu      sync.Mutex
}

func (h *slowHasher) enter() {
	n := h.active.Add(1)
	h.mu.Lock()
	if n > h.maxSeen.Load() {
		h.maxSeen.Store(n)
	}
	h.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	h.active.Add(-1)
}

func (h *slowHasher) Hash(password string) (string, error) {
	h.enter()
	return "h:" + password, nil
}

func (h *slowHasher) Verify(password, hash string) (bool, error) {
	h.enter()
	return hash == "h:"+password, nil
}

func TestHashPool_BoundsConcurrency(t *testing.T) {
	h := &slowHasher{}
	pool := NewHashPool(h, 2)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := pool.Hash(ctx, "p")
			return err
		})
		g.Go(func() error {
			_, err := pool.Verify(ctx, "p", "h:p")
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, h.maxSeen.Load(), int32(2))
}

func TestHashPool_CancelledContext(t *testing.T) {
	pool := NewHashPool(&slowHasher{}, 1)

	// Occupy the only slot.
	require.NoError(t, pool.sem.Acquire(context.Background(), 1))
	defer pool.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.Hash(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)

	ok, err := pool.Verify(ctx, "p", "h:p")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHashPool_MinimumSize(t *testing.T) {
	pool := NewHashPool(&slowHasher{}, 0)
	got, err := pool.Hash(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "h:x", got)
}
