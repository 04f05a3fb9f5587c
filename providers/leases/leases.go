// Package leases provides in-process mutual exclusion leases as a singleton
// provider.
package leases

import (
	"context"
	"sync"
	"time"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/providence"
)

// ErrLeaseHeld is returned when lease acquisition times out because the
// lease is already held.
var ErrLeaseHeld = errors.New("lease is held")

// ErrLeaseNotHeld is returned by Release when the lease is not held.
var ErrLeaseNotHeld = errors.New("lease is not held")

// Release an acquired lease.
type Release func(ctx context.Context) error

// Leaser acquires and releases named leases.
type Leaser interface {
	// Acquire blocks until the lease for key is acquired, the timeout is
	// reached, or ctx is cancelled. An acquired lease is released by calling
	// the returned Release function, or automatically when ctx is cancelled.
	Acquire(ctx context.Context, key string, timeout time.Duration) (Release, error)
}

// Provider is the leaser singleton.
var Provider *providence.Provider

var leaser *providence.Field[Leaser]

func init() {
	Provider = providence.MustDeclare("leases", providence.Init(initialize))
	leaser = providence.NewField[Leaser](Provider, "leaser")
}

func initialize(ctx context.Context) error {
	return leaser.Set(ctx, NewMemoryLeaser())
}

// Acquire a lease from the process-wide leaser, initializing it on first
// use.
func Acquire(ctx context.Context, key string, timeout time.Duration) (Release, error) {
	l, err := leaser.Get(ctx)
	if err != nil {
		return nil, err
	}
	return l.Acquire(ctx, key, timeout)
}

// MemoryLeaser holds leases in an in-memory map. It can never fail.
type MemoryLeaser struct {
	lock sync.Mutex
	// held maps a key to a channel closed when the lease is released.
	held map[string]chan struct{}
}

// NewMemoryLeaser creates a [Leaser] backed by process memory.
func NewMemoryLeaser() *MemoryLeaser {
	return &MemoryLeaser{held: map[string]chan struct{}{}}
}

var _ Leaser = (*MemoryLeaser)(nil)

func (m *MemoryLeaser) Acquire(ctx context.Context, key string, timeout time.Duration) (Release, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		m.lock.Lock()
		holder, ok := m.held[key]
		if !ok {
			released := make(chan struct{})
			m.held[key] = released
			m.lock.Unlock()
			// Release the lease if the context is cancelled first.
			go func() {
				select {
				case <-ctx.Done():
					m.release(key, released)
				case <-released:
				}
			}()
			release := func(ctx context.Context) error {
				if !m.release(key, released) {
					return errors.Errorf("%s: %w", key, ErrLeaseNotHeld)
				}
				return nil
			}
			return release, nil
		}
		m.lock.Unlock()

		// Lease is held, wait for release then try again.
		select {
		case <-holder:
		case <-timeoutCtx.Done():
			return nil, errors.Errorf("%s: %w", key, ErrLeaseHeld)
		}
	}
}

// release drops the lease identified by its release channel, returning false
// if it was already released.
func (m *MemoryLeaser) release(key string, released chan struct{}) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	select {
	case <-released:
		return false
	default:
	}
	close(released)
	delete(m.held, key)
	return true
}
