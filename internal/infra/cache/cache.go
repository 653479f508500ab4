// Package cache provides a simple in-memory TTL cache.
// It backs the per-browser provider registry and the in-memory session storage.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Option configures an InMemory cache.
type Option[T any] func(*InMemory[T])

// WithOnEvict registers a callback invoked, outside the lock, for every entry
// removed by expiry, Delete or Close.
func WithOnEvict[T any](fn func(key string, value T)) Option[T] {
	return func(c *InMemory[T]) { c.onEvict = fn }
}

// WithSlidingExpiry extends an entry's TTL on every successful Get.
func WithSlidingExpiry[T any]() Option[T] {
	return func(c *InMemory[T]) { c.sliding = true }
}

// InMemory is a thread-safe in-memory cache with TTL.
type InMemory[T any] struct {
	mu      sync.RWMutex
	items   map[string]entry[T]
	ttl     time.Duration
	sliding bool
	onEvict func(key string, value T)

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a new in-memory cache with the given TTL.
func New[T any](ttl time.Duration, opts ...Option[T]) *InMemory[T] {
	c := &InMemory[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Background cleanup goroutine
	go c.cleanup()
	return c
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	if c.sliding {
		c.mu.Lock()
		defer c.mu.Unlock()
	} else {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	if c.sliding {
		e.expiresAt = time.Now().Add(c.ttl)
		c.items[key] = e
	}
	return e.value, true
}

// GetOrCreate returns the live value for key, or stores the one built by
// create. The bool reports whether the value already existed.
func (c *InMemory[T]) GetOrCreate(key string, create func() (T, error)) (T, bool, error) {
	c.mu.Lock()
	e, ok := c.items[key]
	if ok && time.Now().Before(e.expiresAt) {
		if c.sliding {
			e.expiresAt = time.Now().Add(c.ttl)
			c.items[key] = e
		}
		c.mu.Unlock()
		return e.value, true, nil
	}

	v, err := create()
	if err != nil {
		c.mu.Unlock()
		var zero T
		return zero, false, err
	}
	c.items[key] = entry[T]{value: v, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	// an expired entry still sitting in the map is evicted now
	if ok {
		c.evict(key, e.value)
	}
	return v, false, nil
}

// Set stores a value in the cache with the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes a value from the cache.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	e, ok := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()

	if ok {
		c.evict(key, e.value)
	}
}

// Len returns the number of stored entries, expired ones included until
// the next cleanup pass.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine and evicts every entry.
func (c *InMemory[T]) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)

		c.mu.Lock()
		items := c.items
		c.items = make(map[string]entry[T])
		c.mu.Unlock()

		for k, e := range items {
			c.evict(k, e.value)
		}
	})
}

func (c *InMemory[T]) evict(key string, value T) {
	if c.onEvict != nil {
		c.onEvict(key, value)
	}
}

// cleanup periodically removes expired entries.
func (c *InMemory[T]) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		expired := make(map[string]T)
		c.mu.Lock()
		now := time.Now()
		for k, v := range c.items {
			if now.After(v.expiresAt) {
				expired[k] = v.value
				delete(c.items, k)
			}
		}
		c.mu.Unlock()

		for k, v := range expired {
			c.evict(k, v)
		}
	}
}
