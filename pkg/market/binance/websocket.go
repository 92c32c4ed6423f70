package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StreamClient manages lightweight streaming from Binance futures public websockets.
type StreamClient struct {
	StreamURL string
	dialer    *websocket.Dialer
	log       *zap.Logger
}

// NewStreamClient builds a websocket client; testnet toggles the host.
func NewStreamClient(testnet bool, log *zap.Logger) *StreamClient {
	host := "fstream.binance.com"
	if testnet {
		host = "stream.binancefuture.com"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamClient{
		StreamURL: (&url.URL{Scheme: "wss", Host: host, Path: "/ws"}).String(),
		dialer:    websocket.DefaultDialer,
		log:       log,
	}
}

// SubscribeMarkPrice listens to the 1s mark-price stream of a symbol.
// The channel is closed when the connection ends; call stop to end it early.
func (c *StreamClient) SubscribeMarkPrice(ctx context.Context, symbol string) (<-chan MarkPrice, func(), error) {
	// Binance requires lowercase symbols for WebSocket streams
	stream := fmt.Sprintf("%s@markPrice@1s", strings.ToLower(symbol))
	u := fmt.Sprintf("%s/%s", c.StreamURL, stream)

	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial binance ws: %w", err)
	}

	out := make(chan MarkPrice, 100)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			// Ignore errors; connection may already be closed.
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		})
	}

	go func() {
		<-ctx.Done()
		stop()
	}()

	go func() {
		defer close(out)
		defer stop()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				// If connection already closed by caller/context, just exit quietly.
				if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
					strings.Contains(err.Error(), "use of closed network connection") {
					return
				}
				c.log.Warn("binance ws read error", zap.String("symbol", symbol), zap.Error(err))
				return
			}

			parsed, err := parseMarkPriceMessage(msg)
			if err != nil {
				c.log.Debug("binance ws parse error", zap.String("symbol", symbol), zap.Error(err))
				continue
			}
			select {
			case out <- parsed:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, stop, nil
}

// parseMarkPriceMessage decodes only the fields we need.
func parseMarkPriceMessage(msg []byte) (MarkPrice, error) {
	var raw struct {
		Event      string `json:"e"`
		EventTime  any    `json:"E"`
		Symbol     string `json:"s"`
		MarkPrice  any    `json:"p"`
		IndexPrice any    `json:"i"`
	}
	if err := sonic.Unmarshal(msg, &raw); err != nil {
		return MarkPrice{}, err
	}
	if raw.Event != "markPriceUpdate" {
		return MarkPrice{}, fmt.Errorf("unexpected event %q", raw.Event)
	}
	mp := MarkPrice{
		Symbol:     raw.Symbol,
		Price:      toFloat(raw.MarkPrice),
		IndexPrice: toFloat(raw.IndexPrice),
		Time:       toInt64(raw.EventTime),
	}
	if mp.Price <= 0 {
		return MarkPrice{}, fmt.Errorf("mark price %v for %s", raw.MarkPrice, raw.Symbol)
	}
	return mp, nil
}

// Ping keeps the connection alive; useful if the caller wants manual control.
func (c *StreamClient) Ping(conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second))
}
