package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

// DefaultTTL bounds how long a resolved station is trusted. Station
// reconfiguration is only picked up after expiry.
const DefaultTTL = 30 * time.Minute

// Cache stores resolved station names. Entries expire after their TTL; there is
// no active invalidation.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	GenerateKey(branch, itemGroup string) string
}

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is a process-local Cache driven by an injected clock.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	clock   interfaces.Clock
}

func NewMemoryCache(clock interfaces.Clock) *MemoryCache {
	if clock == nil {
		clock = interfaces.SystemClock{}
	}
	return &MemoryCache{
		entries: make(map[string]entry),
		clock:   clock,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) GenerateKey(branch, itemGroup string) string {
	return fmt.Sprintf("kitchen_station_mapping:%s:%s", branch, itemGroup)
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
