package ratelimit

import (
	"sync"
	"time"
)

// Limiter throttles login attempts per key (client IP or account email).
type Limiter interface {
	Allow(key string, limit int) Decision
}

type Decision struct {
	Allowed   bool
	Count     int
	Remaining int
	ResetAt   time.Time
}

// InMemoryLimiter is a fixed-window counter used when redis is down.
type InMemoryLimiter struct {
	mu     sync.Mutex
	window time.Duration
	items  map[string]windowEntry
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

func NewInMemory(window time.Duration) *InMemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &InMemoryLimiter{window: window, items: map[string]windowEntry{}}
}

func (l *InMemoryLimiter) Allow(key string, limit int) Decision {
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.items {
		if now.After(v.resetAt) {
			delete(l.items, k)
		}
	}
	curr, ok := l.items[key]
	if !ok || now.After(curr.resetAt) {
		curr = windowEntry{resetAt: now.Add(l.window)}
	}
	curr.count++
	l.items[key] = curr
	remaining := limit - curr.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   curr.count <= limit,
		Count:     curr.count,
		Remaining: remaining,
		ResetAt:   curr.resetAt,
	}
}
