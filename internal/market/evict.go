package market

import (
	"context"
	"time"

	"terminal-core/pkg/cache"
	"terminal-core/pkg/logger"
)

// EvictStale drops cached prices older than maxAge every interval until ctx
// ends, so a dead stream stops feeding market-order prices into sessions.
func EvictStale(ctx context.Context, prices *cache.PriceCache, interval, maxAge time.Duration) {
	if prices == nil || maxAge <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := prices.Cleanup(now, maxAge); n > 0 {
				logger.Warn("evicted %d stale prices (older than %s), %d left", n, maxAge, prices.Len())
			}
		}
	}
}
