package cache

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

const numShards = 16

// Tick is the newest known price for a symbol.
type Tick struct {
	Price float64   `json:"price"`
	At    time.Time `json:"at"`
}

// PriceCache keeps the latest tick per symbol, sharded to spread lock contention
// between feed writers and session readers.
type PriceCache struct {
	shards [numShards]*priceShard
}

type priceShard struct {
	mu    sync.RWMutex
	items map[string]Tick
}

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	c := &PriceCache{}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &priceShard{
			items: make(map[string]Tick),
		}
	}
	return c
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// getShard returns the shard for the given key.
func (c *PriceCache) getShard(key string) *priceShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores a tick unless a newer one is already cached. Reports whether it was kept.
func (c *PriceCache) Set(symbol string, price float64, at time.Time) bool {
	if price <= 0 {
		return false
	}
	symbol = normalize(symbol)
	shard := c.getShard(symbol)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if cur, ok := shard.items[symbol]; ok && at.Before(cur.At) {
		return false
	}
	shard.items[symbol] = Tick{Price: price, At: at}
	return true
}

// Latest returns the newest tick for a symbol.
func (c *PriceCache) Latest(symbol string) (Tick, bool) {
	symbol = normalize(symbol)
	shard := c.getShard(symbol)
	shard.mu.RLock()
	t, ok := shard.items[symbol]
	shard.mu.RUnlock()
	return t, ok
}

// LatestPrice satisfies the terminal price source.
func (c *PriceCache) LatestPrice(symbol string) (float64, bool) {
	t, ok := c.Latest(symbol)
	return t.Price, ok
}

// Len returns total items across all shards.
func (c *PriceCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.items)
		shard.mu.RUnlock()
	}
	return total
}

// Cleanup removes ticks older than maxAge relative to now.
func (c *PriceCache) Cleanup(now time.Time, maxAge time.Duration) int {
	removed := 0
	cutoff := now.Add(-maxAge)
	for _, shard := range c.shards {
		shard.mu.Lock()
		for sym, t := range shard.items {
			if t.At.Before(cutoff) {
				delete(shard.items, sym)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}
