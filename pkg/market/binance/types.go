package market

// MarkPrice is one futures mark-price update.
type MarkPrice struct {
	Symbol     string
	Price      float64
	IndexPrice float64
	Time       int64 // event time (ms)
}

// SymbolInfo is the subset of exchangeInfo the terminal needs to build limits.
type SymbolInfo struct {
	Symbol            string
	Base              string
	Quote             string
	ContractType      string // "linear" or "inverse"
	ContractSize      float64
	PricePrecision    int32
	QuantityPrecision int32
	MinPrice          float64
	MaxPrice          float64
	MinQty            float64
	MaxQty            float64
	MinNotional       float64
}
