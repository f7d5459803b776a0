package browser

import (
	"context"
	"sync"
)

// Mutex is a FIFO lock guarding the headless browser. Only one session may
// hold the browser profile at a time; waiters are served in arrival order.
type Mutex struct {
	mu      sync.Mutex
	locked  bool
	waiters []chan struct{}
}

func NewMutex() *Mutex { return &Mutex{} }

// Acquire blocks until the caller holds the lock or ctx ends. A caller that
// gives up before being handed the lock is removed from the queue.
func (m *Mutex) Acquire(ctx context.Context) error {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	m.waiters = append(m.waiters, ch)
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		for i, w := range m.waiters {
			if w == ch {
				m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
				m.mu.Unlock()
				return ctx.Err()
			}
		}
		m.mu.Unlock()
		// Handed the lock while giving up; pass it on.
		m.Release()
		return ctx.Err()
	}
}

// Release hands the lock to the longest waiting caller, or unlocks it.
func (m *Mutex) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.waiters) > 0 {
		next := m.waiters[0]
		m.waiters = m.waiters[1:]
		close(next)
		return
	}
	m.locked = false
}

// WithLock runs fn while holding the lock and releases it however fn exits.
func (m *Mutex) WithLock(ctx context.Context, fn func() error) error {
	if err := m.Acquire(ctx); err != nil {
		return err
	}
	defer m.Release()
	return fn()
}

// State reports whether the lock is held and how many callers are queued.
func (m *Mutex) State() (locked bool, waiting int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked, len(m.waiters)
}
