package usecase

import (
	"context"
	"sync"
)

// LocalPairLocker is an in-process PairLocker for single-instance deployments
// and tests.
type LocalPairLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalPairLocker creates a new LocalPairLocker.
func NewLocalPairLocker() *LocalPairLocker {
	return &LocalPairLocker{held: make(map[string]struct{})}
}

// TryLock implements PairLocker.
func (l *LocalPairLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
