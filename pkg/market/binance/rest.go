package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Client wraps public REST access to Binance futures.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Testnet    bool
}

// NewClient builds a REST client for USDT-margined futures; use testnet to switch base URLs.
func NewClient(testnet bool) *Client {
	base := "https://fapi.binance.com"
	if testnet {
		base = "https://testnet.binancefuture.com"
	}
	return &Client{
		BaseURL:    base,
		Testnet:    testnet,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetMarkPrice fetches the current mark price of one symbol.
func (c *Client) GetMarkPrice(ctx context.Context, symbol string) (MarkPrice, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	body, err := c.get(ctx, "/fapi/v1/premiumIndex", params)
	if err != nil {
		return MarkPrice{}, err
	}
	var raw struct {
		Symbol     string `json:"symbol"`
		MarkPrice  any    `json:"markPrice"`
		IndexPrice any    `json:"indexPrice"`
		Time       any    `json:"time"`
	}
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return MarkPrice{}, fmt.Errorf("decode mark price: %w", err)
	}
	return MarkPrice{
		Symbol:     raw.Symbol,
		Price:      toFloat(raw.MarkPrice),
		IndexPrice: toFloat(raw.IndexPrice),
		Time:       toInt64(raw.Time),
	}, nil
}

// ExchangeInfo lists tradable futures symbols with their filters.
func (c *Client) ExchangeInfo(ctx context.Context) ([]SymbolInfo, error) {
	body, err := c.get(ctx, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}
	return parseExchangeInfo(body)
}

func parseExchangeInfo(body []byte) ([]SymbolInfo, error) {
	var raw struct {
		Symbols []struct {
			Symbol            string           `json:"symbol"`
			Status            string           `json:"status"`
			BaseAsset         string           `json:"baseAsset"`
			QuoteAsset        string           `json:"quoteAsset"`
			MarginAsset       string           `json:"marginAsset"`
			ContractSize      any              `json:"contractSize"`
			PricePrecision    int32            `json:"pricePrecision"`
			QuantityPrecision int32            `json:"quantityPrecision"`
			Filters           []map[string]any `json:"filters"`
		} `json:"symbols"`
	}
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode exchange info: %w", err)
	}

	out := make([]SymbolInfo, 0, len(raw.Symbols))
	for _, s := range raw.Symbols {
		if s.Status != "" && s.Status != "TRADING" {
			continue
		}
		info := SymbolInfo{
			Symbol:            s.Symbol,
			Base:              s.BaseAsset,
			Quote:             s.QuoteAsset,
			ContractType:      "linear",
			ContractSize:      toFloat(s.ContractSize),
			PricePrecision:    s.PricePrecision,
			QuantityPrecision: s.QuantityPrecision,
		}
		// Coin-margined contracts settle in the base asset.
		if s.MarginAsset != "" && s.MarginAsset == s.BaseAsset {
			info.ContractType = "inverse"
		}
		for _, f := range s.Filters {
			switch f["filterType"] {
			case "PRICE_FILTER":
				info.MinPrice = toFloat(f["minPrice"])
				info.MaxPrice = toFloat(f["maxPrice"])
			case "LOT_SIZE":
				info.MinQty = toFloat(f["minQty"])
				info.MaxQty = toFloat(f["maxQty"])
			case "MIN_NOTIONAL":
				info.MinNotional = toFloat(f["notional"])
			}
		}
		out = append(out, info)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance %s status %d: %s", path, res.StatusCode, string(body))
	}
	return body, nil
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case float64:
		return t
	case int64:
		return float64(t)
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case string:
		i, _ := strconv.ParseInt(t, 10, 64)
		return i
	default:
		return 0
	}
}
