// Package revcache holds a relying party's memory of revocation decisions.
//
// An entry answers "was this token blacklisted when the issuer was last asked"
// and is trusted until CachedUntil, which is exactly one TTL after it was
// written. That TTL is the upper bound on how long a revoked token can still
// be accepted by a process that cached it as clean.
package revcache

import (
	"sync"
	"time"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = 10 * time.Minute
)

type Entry struct {
	Blacklisted bool
	CachedUntil time.Time
}

type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) TTL() time.Duration { return c.ttl }

// Get reports a hit only while now < CachedUntil.
func (c *Cache) Get(token string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[token]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.CachedUntil) {
		return Entry{}, false
	}
	return e, true
}

func (c *Cache) Set(token string, blacklisted bool) Entry {
	e := Entry{Blacklisted: blacklisted, CachedUntil: c.now().Add(c.ttl)}
	c.mu.Lock()
	c.entries[token] = e
	c.mu.Unlock()
	return e
}

// Sweep drops expired entries and returns how many it removed. Expired keys
// are collected under the read lock; each removal then takes the write lock
// for that one entry and re-checks it, so a concurrent Set is never lost.
func (c *Cache) Sweep() int {
	now := c.now()

	c.mu.RLock()
	var expired []string
	for k, e := range c.entries {
		if !now.Before(e.CachedUntil) {
			expired = append(expired, k)
		}
	}
	c.mu.RUnlock()

	removed := 0
	for _, k := range expired {
		c.mu.Lock()
		if e, ok := c.entries[k]; ok && !now.Before(e.CachedUntil) {
			delete(c.entries, k)
			removed++
		}
		c.mu.Unlock()
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
