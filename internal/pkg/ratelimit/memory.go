package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a process-local window, used in tests and when Redis is
// not configured.
type MemoryLimiter struct {
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	attempts map[string][]time.Time
}

func NewMemoryLimiter(policy Policy) *MemoryLimiter {
	return &MemoryLimiter{
		policy:   policy,
		now:      time.Now,
		attempts: make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) IsLimited(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(key)
	return len(recent) >= l.policy.Max, nil
}

func (l *MemoryLimiter) RecordAttempt(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts[key] = append(l.prune(key), l.now())
	return nil
}

// prune drops attempts older than the window. Callers hold mu.
func (l *MemoryLimiter) prune(key string) []time.Time {
	cutoff := l.now().Add(-l.policy.Window)
	times := l.attempts[key]
	kept := times[:0]
	for _, t := range times {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.attempts, key)
		return nil
	}
	l.attempts[key] = kept
	return kept
}
