package market

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"terminal-core/internal/events"
	"terminal-core/internal/symbols"
	"terminal-core/pkg/cache"
	market "terminal-core/pkg/market/binance"
)

func TestMockFeedTickPublishesAndCaches(t *testing.T) {
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(events.EventPriceTick, 4)
	defer unsub()
	prices := cache.NewPriceCache()

	m := &MockFeed{
		Bus:         bus,
		Prices:      prices,
		Symbols:     []string{"btcusdt"},
		StartPrices: map[string]float64{"BTCUSDT": 20000},
		Step:        0.01,
		Rand:        rand.New(rand.NewSource(1)),
	}
	t0 := time.Unix(1_700_000_000, 0)
	m.tick(t0)
	first := (<-ch).(events.PriceTick)
	if first.Symbol != "BTCUSDT" || first.Price != 20000 || !first.Timestamp.Equal(t0) {
		t.Fatalf("first tick %+v", first)
	}

	m.tick(t0.Add(time.Second))
	second := (<-ch).(events.PriceTick)
	if second.Price < 19800 || second.Price > 20200 {
		t.Fatalf("step out of range: %v", second.Price)
	}
	if p, _ := prices.LatestPrice("BTCUSDT"); p != second.Price {
		t.Fatalf("cache=%v, tick=%v", p, second.Price)
	}
}

func TestPublishTickDropsOlder(t *testing.T) {
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(events.EventPriceTick, 4)
	defer unsub()
	prices := cache.NewPriceCache()
	now := time.Now()

	if !publishTick(bus, prices, "ETHUSDT", 10, now) {
		t.Fatal("first tick dropped")
	}
	if publishTick(bus, prices, "ETHUSDT", 9, now.Add(-time.Second)) {
		t.Fatal("older tick published")
	}
	<-ch
	select {
	case v := <-ch:
		t.Fatalf("unexpected %v", v)
	default:
	}
}

func TestBackoff(t *testing.T) {
	d := minBackoff
	for i := 0; i < 10; i++ {
		d = nextBackoff(d)
	}
	if d != maxBackoff {
		t.Fatalf("backoff=%v", d)
	}
}

func TestSymbolFromInfo(t *testing.T) {
	s := SymbolFromInfo(market.SymbolInfo{
		Symbol: "BTCUSD_PERP", Base: "BTC", Quote: "USD", ContractType: "inverse", ContractSize: 100,
		PricePrecision: 1, MinPrice: 1000, MinQty: 1, MaxQty: 10000,
	})
	if !s.Inverse() || s.Mult() != 100 {
		t.Fatalf("symbol %+v", s)
	}
	if s.Limits.Price.Max != nil || *s.Limits.Price.Min != 1000 {
		t.Fatalf("price limits %+v", s.Limits.Price)
	}
	if s.Limits.Cost.Min != nil || s.Limits.Cost.Max != nil {
		t.Fatalf("cost limits %+v", s.Limits.Cost)
	}

	c, err := symbols.NewCatalog([]symbols.Symbol{s})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get("btcusd_perp"); err != nil {
		t.Fatal(err)
	}
}

func TestEvictStaleRemovesOldTicks(t *testing.T) {
	prices := cache.NewPriceCache()
	prices.Set("BTCUSDT", 20000, time.Now().Add(-time.Hour))
	prices.Set("ETHUSDT", 1500, time.Now().Add(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		EvictStale(ctx, prices, 5*time.Millisecond, time.Minute)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for prices.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("len=%d", prices.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := prices.Latest("ETHUSDT"); !ok {
		t.Fatal("fresh tick evicted")
	}
	cancel()
	<-done
}
