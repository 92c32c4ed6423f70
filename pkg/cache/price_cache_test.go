package cache

import (
	"sync"
	"testing"
	"time"
)

func TestSetKeepsNewestTick(t *testing.T) {
	c := NewPriceCache()
	t0 := time.Unix(1_700_000_000, 0)

	if !c.Set("btcusdt", 100, t0) {
		t.Fatal("first tick rejected")
	}
	if c.Set("BTCUSDT", 90, t0.Add(-time.Second)) {
		t.Fatal("older tick accepted")
	}
	if p, ok := c.LatestPrice("BTCUSDT"); !ok || p != 100 {
		t.Fatalf("price=%v ok=%v", p, ok)
	}
	if !c.Set("BTCUSDT", 101, t0.Add(time.Second)) {
		t.Fatal("newer tick rejected")
	}
	if c.Set("BTCUSDT", 0, t0.Add(2*time.Second)) {
		t.Fatal("non-positive price accepted")
	}
	tick, _ := c.Latest("btcusdt")
	if tick.Price != 101 || !tick.At.Equal(t0.Add(time.Second)) {
		t.Fatalf("tick=%+v", tick)
	}
}

func TestCleanupDropsStaleTicks(t *testing.T) {
	c := NewPriceCache()
	now := time.Now()
	c.Set("A", 1, now.Add(-time.Hour))
	c.Set("B", 2, now)
	if removed := c.Cleanup(now, time.Minute); removed != 1 {
		t.Fatalf("removed=%d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d", c.Len())
	}
	if _, ok := c.Latest("a"); ok {
		t.Fatal("stale tick still served")
	}
}

func TestConcurrentWriters(t *testing.T) {
	c := NewPriceCache()
	base := time.Unix(0, 0)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 1; i <= 200; i++ {
				c.Set("ETHUSDT", float64(i), base.Add(time.Duration(i)*time.Millisecond))
				c.LatestPrice("ETHUSDT")
			}
		}(w)
	}
	wg.Wait()
	if p, _ := c.LatestPrice("ETHUSDT"); p != 200 {
		t.Fatalf("price=%v, expected newest 200", p)
	}
}
