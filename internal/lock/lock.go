package lock

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNotHeld is returned when releasing a key with a token that does not own it.
var ErrNotHeld = errors.New("lock not held")

// Manager hands out mutually exclusive leases on string keys.
// ok is false when the key could not be acquired within the manager's budget.
type Manager interface {
	Acquire(ctx context.Context, key string) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// Local is an in-process keyed lock. Acquire waits for the current holder
// or for ctx to end; it never reports ok=false without an error.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch    chan struct{}
	refs  int
	token string
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Acquire(ctx context.Context, key string) (string, bool, error) {
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
		token := uuid.NewString()
		l.mu.Lock()
		s.token = token
		l.mu.Unlock()
		return token, true, nil
	case <-ctx.Done():
		l.mu.Lock()
		l.drop(key, s)
		l.mu.Unlock()
		return "", false, ctx.Err()
	}
}

func (l *Local) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok || token == "" || s.token != token {
		return ErrNotHeld
	}
	s.token = ""
	l.drop(key, s)
	<-s.ch
	return nil
}

// drop must be called with l.mu held.
func (l *Local) drop(key string, s *slot) {
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Held reports how many keys currently have a holder or waiter.
func (l *Local) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
