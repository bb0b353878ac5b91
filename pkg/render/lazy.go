package render

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Lazy holds a process-lifetime value built on first use. Concurrent first
// callers share a single construction; a failed construction is retried by
// the next caller. Reset drops the value so the next Get rebuilds it.
type Lazy[T any] struct {
	init  func(context.Context) (T, error)
	ready func(T)
	group singleflight.Group

	mu  sync.RWMutex
	val T
	ok  bool
}

// NewLazy returns a handle that builds its value with init.
func NewLazy[T any](init func(context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{init: init}
}

// OnReady registers fn to run with every newly constructed value once it is
// stored, so fn may Reset or ResetIf it. It must be set before the first Get.
func (l *Lazy[T]) OnReady(fn func(T)) *Lazy[T] {
	l.ready = fn
	return l
}

// Get returns the value, constructing it if needed.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	if v, ok := l.Peek(); ok {
		return v, nil
	}
	v, err, _ := l.group.Do("init", func() (any, error) {
		if v, ok := l.Peek(); ok {
			return v, nil
		}
		v, err := l.init(ctx)
		if err != nil {
			return v, err
		}
		l.mu.Lock()
		l.val, l.ok = v, true
		l.mu.Unlock()
		if l.ready != nil {
			l.ready(v)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	val, _ := v.(T)
	return val, nil
}

// Peek returns the value without constructing it.
func (l *Lazy[T]) Peek() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.val, l.ok
}

// Reset clears the value. It returns the old value, if any, so the caller
// can release it.
func (l *Lazy[T]) Reset() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	old, ok := l.val, l.ok
	var zero T
	l.val, l.ok = zero, false
	return old, ok
}

// ResetIf clears the value when match reports true for it.
func (l *Lazy[T]) ResetIf(match func(T) bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ok || !match(l.val) {
		return false
	}
	var zero T
	l.val, l.ok = zero, false
	return true
}
