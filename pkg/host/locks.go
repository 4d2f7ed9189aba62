package host

import (
	"context"
	"sync"

	"github.com/ajitpratap0/quack/pkg/errors"
)

// LockManager implements transaction-scoped advisory locks shared by several
// in-process sessions. A PostgreSQL host provides the same semantics with
// pg_advisory_xact_lock.
type LockManager struct {
	mu    sync.Mutex
	locks map[int64]*heldLock
}

type heldLock struct {
	owner    *LockSession
	count    int
	released chan struct{}
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[int64]*heldLock)}
}

// Session returns a lock owner. Each host session owns one.
func (m *LockManager) Session(name string) *LockSession {
	return &LockSession{manager: m, name: name, held: make(map[int64]struct{})}
}

// LockSession is one owner of advisory locks. It is used by a single session
// and is not safe for concurrent use by several goroutines.
type LockSession struct {
	manager *LockManager
	name    string
	held    map[int64]struct{}
}

// AdvisoryXactLock blocks until key is free or already held by this session.
// It fails when ctx is done first.
func (s *LockSession) AdvisoryXactLock(ctx context.Context, key int64) error {
	m := s.manager
	for {
		m.mu.Lock()
		l, exists := m.locks[key]
		if !exists {
			m.locks[key] = &heldLock{owner: s, count: 1, released: make(chan struct{})}
			s.held[key] = struct{}{}
			m.mu.Unlock()
			return nil
		}
		if l.owner == s {
			l.count++
			m.mu.Unlock()
			return nil
		}
		wait := l.released
		m.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrorTypeLock, "advisory lock wait cancelled").
				WithDetail("key", key).
				WithDetail("session", s.name)
		}
	}
}

// Holds reports whether the session currently holds key.
func (s *LockSession) Holds(key int64) bool {
	_, ok := s.held[key]
	return ok
}

// ReleaseAll drops every lock the session holds. Hosts call it when the
// top-level transaction ends.
func (s *LockSession) ReleaseAll() {
	m := s.manager
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range s.held {
		if l, ok := m.locks[key]; ok && l.owner == s {
			delete(m.locks, key)
			close(l.released)
		}
		delete(s.held, key)
	}
}
