package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseMarkPriceMessage(t *testing.T) {
	msg := []byte(`{"e":"markPriceUpdate","E":1562305380000,"s":"BTCUSDT","p":"11794.15000000","i":"11784.62659091","r":"0.00038167","T":1562306400000}`)
	mp, err := parseMarkPriceMessage(msg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if mp.Symbol != "BTCUSDT" || mp.Price != 11794.15 || mp.Time != 1562305380000 {
		t.Fatalf("got %+v", mp)
	}

	for _, bad := range []string{`{"e":"kline"}`, `{"e":"markPriceUpdate","s":"X","p":"0"}`, `not json`} {
		if _, err := parseMarkPriceMessage([]byte(bad)); err == nil {
			t.Fatalf("%s: expected error", bad)
		}
	}
}

func TestExchangeInfoFilters(t *testing.T) {
	body := `{"symbols":[
		{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT","marginAsset":"USDT","pricePrecision":2,"quantityPrecision":3,
		 "filters":[{"filterType":"PRICE_FILTER","minPrice":"0.10","maxPrice":"1000000"},{"filterType":"LOT_SIZE","minQty":"0.001","maxQty":"1000"},{"filterType":"MIN_NOTIONAL","notional":"100"}]},
		{"symbol":"BTCUSD_PERP","status":"TRADING","baseAsset":"BTC","quoteAsset":"USD","marginAsset":"BTC","contractSize":100,"pricePrecision":1,"quantityPrecision":0,"filters":[]},
		{"symbol":"OLDUSDT","status":"SETTLING","baseAsset":"OLD","quoteAsset":"USDT","filters":[]}
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/exchangeInfo" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewClient(false)
	c.BaseURL = srv.URL
	infos, err := c.ExchangeInfo(context.Background())
	if err != nil {
		t.Fatalf("exchange info: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("infos=%+v", infos)
	}
	btc := infos[0]
	if btc.MinPrice != 0.1 || btc.MaxQty != 1000 || btc.MinNotional != 100 || btc.ContractType != "linear" {
		t.Fatalf("btc=%+v", btc)
	}
	if infos[1].ContractType != "inverse" || infos[1].ContractSize != 100 {
		t.Fatalf("perp=%+v", infos[1])
	}
}

func TestGetMarkPriceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "ETHUSDT" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"symbol":"ETHUSDT","markPrice":"1800.5","indexPrice":"1800.1","time":1700000000000}`))
	}))
	defer srv.Close()

	c := NewClient(true)
	c.BaseURL = srv.URL
	mp, err := c.GetMarkPrice(context.Background(), "ethusdt")
	if err != nil || mp.Price != 1800.5 || mp.Time != 1700000000000 {
		t.Fatalf("mark price %+v err=%v", mp, err)
	}
	if _, err := c.GetMarkPrice(context.Background(), ""); err == nil {
		t.Fatal("expected status error")
	}
}
