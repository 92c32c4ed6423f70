package market

import (
	"context"
	"fmt"

	"terminal-core/internal/symbols"
	market "terminal-core/pkg/market/binance"
)

// SymbolFromInfo maps exchange filters onto terminal limits. Zero filter values
// stay unknown so they never fail validation.
func SymbolFromInfo(info market.SymbolInfo) symbols.Symbol {
	s := symbols.Symbol{
		ID:              info.Symbol,
		Base:            info.Base,
		Quote:           info.Quote,
		ContractType:    symbols.ContractType(info.ContractType),
		PricePrecision:  info.PricePrecision,
		AmountPrecision: info.QuantityPrecision,
	}
	if info.ContractType == string(symbols.ContractInverse) {
		s.Multiplier = info.ContractSize
	}
	s.Limits = &symbols.Limits{
		Price:  bounds(info.MinPrice, info.MaxPrice),
		Amount: bounds(info.MinQty, info.MaxQty),
		Cost:   bounds(info.MinNotional, 0),
	}
	return s
}

func bounds(lo, hi float64) *symbols.Range {
	r := &symbols.Range{}
	if lo > 0 {
		r.Min = &lo
	}
	if hi > 0 {
		r.Max = &hi
	}
	return r
}

// SyncCatalog refreshes catalog entries for the given ids from exchangeInfo.
// Symbols the exchange does not list keep their configured values. Leverage
// settings are not part of exchangeInfo and are carried over.
func SyncCatalog(ctx context.Context, client *market.Client, catalog *symbols.Catalog, ids []string) (int, error) {
	infos, err := client.ExchangeInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("exchange info: %w", err)
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	n := 0
	for _, info := range infos {
		if !want[info.Symbol] {
			continue
		}
		s := SymbolFromInfo(info)
		if prev, err := catalog.Get(info.Symbol); err == nil {
			s.MaxLeverage = prev.MaxLeverage
			s.LeverageLockedInCross = prev.LeverageLockedInCross
		}
		if err := catalog.Put(s); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
