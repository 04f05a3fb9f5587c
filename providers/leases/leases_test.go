package leases

import (
	"context"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestMemoryLeaser(t *testing.T) {
	leaser := NewMemoryLeaser()

	t.Run("AlreadyHeld", func(t *testing.T) {
		release, err := leaser.Acquire(t.Context(), "lease", time.Second)
		assert.NoError(t, err)
		defer release(t.Context()) //nolint
		_, err = leaser.Acquire(t.Context(), "lease", time.Millisecond*100)
		assert.IsError(t, err, ErrLeaseHeld)
	})

	t.Run("ReleaseTwice", func(t *testing.T) {
		release, err := leaser.Acquire(t.Context(), "lease", time.Second)
		assert.NoError(t, err)
		assert.NoError(t, release(t.Context()))
		assert.IsError(t, release(t.Context()), ErrLeaseNotHeld)
	})

	t.Run("ReacquireAfterRelease", func(t *testing.T) {
		release, err := leaser.Acquire(t.Context(), "lease", time.Second)
		assert.NoError(t, err)
		assert.NoError(t, release(t.Context()))
		release, err = leaser.Acquire(t.Context(), "lease", time.Second)
		assert.NoError(t, err)
		assert.NoError(t, release(t.Context()))
	})

	t.Run("ReleasedOnContextCancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		_, err := leaser.Acquire(ctx, "lease", time.Second)
		assert.NoError(t, err)
		cancel()
		// The cancelled holder's lease is released in the background;
		// acquisition blocks until then.
		release, err := leaser.Acquire(t.Context(), "lease", 5*time.Second)
		assert.NoError(t, err)
		assert.NoError(t, release(t.Context()))
	})

	t.Run("DistinctKeysDoNotContend", func(t *testing.T) {
		releaseA, err := leaser.Acquire(t.Context(), "a", time.Second)
		assert.NoError(t, err)
		releaseB, err := leaser.Acquire(t.Context(), "b", time.Second)
		assert.NoError(t, err)
		assert.NoError(t, releaseA(t.Context()))
		assert.NoError(t, releaseB(t.Context()))
	})
}

func TestAcquireInitializesProvider(t *testing.T) {
	release, err := Acquire(t.Context(), "guarded", time.Second)
	assert.NoError(t, err)
	assert.True(t, Provider.Initialized())
	assert.NoError(t, release(t.Context()))
}
