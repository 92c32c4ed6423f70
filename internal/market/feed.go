package market

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"terminal-core/internal/events"
	"terminal-core/pkg/cache"
	"terminal-core/pkg/i18n"
	"terminal-core/pkg/logger"
	market "terminal-core/pkg/market/binance"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

var errStreamClosed = errors.New("stream closed")

// Feed streams futures mark prices from Binance into the price cache and the event bus.
type Feed struct {
	Client  *market.Client
	Stream  *market.StreamClient
	Bus     *events.Bus
	Prices  *cache.PriceCache
	Symbols []string
}

// Start takes a REST snapshot of every symbol, then keeps one websocket stream
// per symbol alive until ctx ends.
func (f *Feed) Start(ctx context.Context) {
	log := logger.Named("market")
	if f.Bus == nil || f.Prices == nil || f.Stream == nil {
		log.Warn("market feed not fully configured; skipping start")
		return
	}

	if f.Client != nil {
		for _, sym := range f.Symbols {
			mp, err := f.Client.GetMarkPrice(ctx, sym)
			if err != nil {
				log.Warn(i18n.Format("FeedError", err), zap.String("symbol", sym))
				continue
			}
			publishTick(f.Bus, f.Prices, mp.Symbol, mp.Price, msTime(mp.Time))
		}
	}

	for _, sym := range f.Symbols {
		go f.run(ctx, sym, log)
	}
	log.Info(i18n.Format("BinanceFeedStarted", f.Symbols))
}

func (f *Feed) run(ctx context.Context, symbol string, log *zap.Logger) {
	backoff := minBackoff
	for ctx.Err() == nil {
		ch, stop, err := f.Stream.SubscribeMarkPrice(ctx, symbol)
		if err == nil {
			backoff = minBackoff
			for mp := range ch {
				publishTick(f.Bus, f.Prices, mp.Symbol, mp.Price, msTime(mp.Time))
			}
			stop()
			err = errStreamClosed
		}
		if ctx.Err() != nil {
			return
		}
		log.Warn(i18n.Format("FeedReconnecting", backoff, err), zap.String("symbol", symbol))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func msTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}

// publishTick stores the tick and announces it only when it is the newest one.
func publishTick(bus *events.Bus, prices *cache.PriceCache, symbol string, price float64, at time.Time) bool {
	if !prices.Set(symbol, price, at) {
		return false
	}
	bus.Publish(events.EventPriceTick, events.PriceTick{Symbol: symbol, Price: price, Timestamp: at})
	return true
}
