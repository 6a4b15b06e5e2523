package latesttrip

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheEntry is the last pointer value read for a vehicle.
type CacheEntry struct {
	TripID   string    `json:"tripId"`
	CachedAt time.Time `json:"cachedAt"`
}

// Cache memoizes latest-trip pointers per vehicle. Entries expire after the
// TTL, but the engine deletes an entry right after every successful pointer
// write, which is what keeps reads fresh.
//
// Every Invalidate bumps the vehicle's generation. A reader takes the
// generation before going to the store and fills the cache with
// PutIfCurrent, so a value read before a concurrent write is never cached.
type Cache struct {
	lru *expirable.LRU[string, CacheEntry]

	mu   sync.Mutex
	gens map[string]uint64
}

func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 4096
	}
	return &Cache{
		lru:  expirable.NewLRU[string, CacheEntry](size, nil, ttl),
		gens: make(map[string]uint64),
	}
}

func (c *Cache) Get(vehicleNumber string) (CacheEntry, bool) {
	return c.lru.Get(vehicleNumber)
}

// Generation returns the vehicle's invalidation count.
func (c *Cache) Generation(vehicleNumber string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[vehicleNumber]
}

// PutIfCurrent stores tripID unless the vehicle was invalidated since gen
// was taken. It reports whether the entry was stored.
func (c *Cache) PutIfCurrent(vehicleNumber, tripID string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[vehicleNumber] != gen {
		return false
	}
	c.lru.Add(vehicleNumber, CacheEntry{TripID: tripID, CachedAt: time.Now()})
	return true
}

func (c *Cache) Invalidate(vehicleNumber string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[vehicleNumber]++
	c.lru.Remove(vehicleNumber)
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
