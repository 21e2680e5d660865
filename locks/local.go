package locks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type slot struct {
	ch    chan struct{}
	refs  int
	owner string
}

// Local is an in-process keyed mutex
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewLocal returns an empty keyed mutex
func NewLocal() *Local {
	return &Local{slots: map[string]*slot{}}
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Acquire waits until key is free or ctx ends
func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	s := l.ref(key)
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, s)
		return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}, nil
}

// TryAcquireLock takes name for owner without waiting. ttl is ignored, a
// process that dies releases everything.
func (l *Local) TryAcquireLock(_ context.Context, name, owner string, _ time.Duration) (bool, error) {
	s := l.ref(name)
	select {
	case s.ch <- struct{}{}:
		l.mu.Lock()
		s.owner = owner
		l.mu.Unlock()
		return true, nil
	default:
		l.unref(name, s)
		return false, nil
	}
}

// ReleaseLock frees name if owner holds it
func (l *Local) ReleaseLock(_ context.Context, name, owner string) error {
	l.mu.Lock()
	s, ok := l.slots[name]
	if !ok || s.owner != owner {
		l.mu.Unlock()
		return nil
	}
	s.owner = ""
	l.mu.Unlock()
	<-s.ch
	l.unref(name, s)
	return nil
}
