// Package cache provides caching implementations for steward exists checks.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/steward"
)

// Compile-time interface check.
var _ steward.Cache = (*Memory)(nil)

// Memory is an in-memory cache with TTL-based expiration.
type Memory struct {
	mu      sync.RWMutex
	entries map[steward.CheckKey]*entry
	ttl     time.Duration
	maxSize int
}

type entry struct {
	allowed   bool
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries. Non-positive
// values keep the default.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.maxSize = n
		}
	}
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[steward.CheckKey]*entry),
		ttl:     5 * time.Minute,
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a cached exists result.
func (m *Memory) Get(_ context.Context, key steward.CheckKey) (allowed, ok bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return false, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return false, false
	}
	return e.allowed, true
}

// Set stores an exists result.
func (m *Memory) Set(_ context.Context, key steward.CheckKey, allowed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[key] = &entry{
		allowed:   allowed,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// InvalidateInstance removes all cached results for a domain instance.
func (m *Memory) InvalidateInstance(_ context.Context, domainID, instanceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if k.DomainID == domainID && k.InstanceID == instanceID {
			delete(m.entries, k)
		}
	}
}

// InvalidateUser removes all cached results for a user.
func (m *Memory) InvalidateUser(_ context.Context, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if k.UserID == userID {
			delete(m.entries, k)
		}
	}
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
