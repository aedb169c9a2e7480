package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// entry holds one admission log per quota and the last access time for cleanup.
type entry struct {
	logs     [][]time.Time
	lastSeen time.Time
}

// MemoryLimiter is an in-process sliding-log limiter. Each key keeps the
// admission timestamps still inside the quota windows, so memory per key is
// bounded by the sum of the quota limits. A background goroutine evicts keys
// that have been idle for longer than the longest window.
type MemoryLimiter struct {
	quotas          []Quota
	cleanupInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	done    chan struct{}
	closed  bool
}

// NewMemoryLimiter creates a limiter enforcing all quotas at once and starts
// the eviction goroutine.
func NewMemoryLimiter(quotas []Quota, cleanupInterval time.Duration) *MemoryLimiter {
	m := &MemoryLimiter{
		quotas:          quotas,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		entries:         make(map[string]*entry),
		done:            make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// Allow checks whether a request from the given key should be allowed.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, Info) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, exists := m.entries[key]
	if !exists {
		e = &entry{logs: make([][]time.Time, len(m.quotas))}
		m.entries[key] = e
	}
	e.lastSeen = now

	allowed := true
	var retryAfter time.Duration
	for i, q := range m.quotas {
		e.logs[i] = prune(e.logs[i], now.Add(-q.Window))
		if len(e.logs[i]) >= q.Limit {
			allowed = false
			if wait := e.logs[i][0].Add(q.Window).Sub(now); wait > retryAfter {
				retryAfter = wait
			}
		}
	}

	if allowed {
		for i := range m.quotas {
			e.logs[i] = append(e.logs[i], now)
		}
	}

	info := m.binding(e, now)
	if !allowed {
		info.RetryAfter = retryAfter
	}
	return allowed, info
}

// binding reports the quota with the fewest remaining requests.
func (m *MemoryLimiter) binding(e *entry, now time.Time) Info {
	var info Info
	for i, q := range m.quotas {
		remaining := q.Limit - len(e.logs[i])
		if i > 0 && remaining >= info.Remaining {
			continue
		}
		info = Info{Limit: q.Limit, Remaining: remaining, ResetAt: now}
		if len(e.logs[i]) > 0 {
			info.ResetAt = e.logs[i][0].Add(q.Window)
		}
	}
	return info
}

// prune drops timestamps at or before cutoff. The log is kept sorted because
// timestamps are appended in admission order under the lock.
func prune(log []time.Time, cutoff time.Time) []time.Time {
	i := sort.Search(len(log), func(i int) bool { return log[i].After(cutoff) })
	if i == 0 {
		return log
	}
	n := copy(log, log[i:])
	return log[:n]
}

// Close stops the background cleanup goroutine.
func (m *MemoryLimiter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}

func (m *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

// evictStale removes keys whose every logged request has left its window.
func (m *MemoryLimiter) evictStale() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-longestWindow(m.quotas))
	for key, e := range m.entries {
		if !e.lastSeen.After(cutoff) {
			delete(m.entries, key)
		}
	}
}
