// Package lock provides per-key mutual exclusion for challenge issuance
package lock

import (
	"context"
	"sync"

	"github.com/layer-3/walletlink/ports"
)

var _ ports.Locker = (*MemoryLocker)(nil)

type slot struct {
	ch   chan struct{}
	refs int
}

// MemoryLocker serializes work per key inside one process
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewMemoryLocker creates a new in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		slots: make(map[string]*slot),
	}
}

// Lock waits for key or ctx, whichever comes first
func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

// release drops a reference and forgets idle keys
func (l *MemoryLocker) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
