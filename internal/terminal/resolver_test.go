package terminal

import (
	"math"
	"testing"

	"terminal-core/internal/position"
)

func numberField(raw string) *Field {
	f := newNumberField()
	f.Set(raw)
	return f
}

func TestResolverFallbacks(t *testing.T) {
	prices := fakePrices{"BTCUSDT": 20000}
	tests := []struct {
		name      string
		r         Resolver
		price     float64
		units     float64
		sizeQuote float64
	}{
		{
			name:      "position wins",
			r:         Resolver{Symbol: "BTCUSDT", Prices: prices, Position: &position.Entity{BuyPrice: 100, Amount: 2, PositionSizeQuote: 200}, Price: numberField("150")},
			price:     100,
			units:     2,
			sizeQuote: 200,
		},
		{
			name:      "draft next",
			r:         Resolver{Symbol: "BTCUSDT", Prices: prices, Price: numberField("150"), Units: numberField("3"), PositionSize: numberField("450")},
			price:     150,
			units:     3,
			sizeQuote: 450,
		},
		{
			name:  "malformed draft falls back to live price",
			r:     Resolver{Symbol: "BTCUSDT", Prices: prices, Price: numberField("1,5"), Units: numberField("x")},
			price: 20000,
		},
		{
			name: "nothing known",
			r:    Resolver{Symbol: "ETHUSDT", Prices: prices},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.EntryPrice(); got != tt.price {
				t.Fatalf("EntryPrice=%v, expected %v", got, tt.price)
			}
			if got := tt.r.EntrySize(); got != tt.units {
				t.Fatalf("EntrySize=%v, expected %v", got, tt.units)
			}
			if got := tt.r.EntrySizeQuote(); got != tt.sizeQuote {
				t.Fatalf("EntrySizeQuote=%v, expected %v", got, tt.sizeQuote)
			}
		})
	}
}

func TestFieldParsing(t *testing.T) {
	f := numberField(" 1.50 ")
	if v, ok := f.Value(); !ok || v != 1.5 || f.Text() != "1.50" {
		t.Fatalf("value=%v ok=%v text=%q", v, ok, f.Text())
	}
	f.Set("")
	if _, ok := f.Value(); ok {
		t.Fatal("empty field has a value")
	}
	if required(f) == nil {
		t.Fatal("empty field must fail required")
	}
	f.resolve(required(f))
	if !f.Suppressed() {
		t.Fatal("failing field must be suppressed")
	}
	f.Set("2")
	f.resolve(required(f), positive(f))
	if f.Suppressed() || f.Err() != nil {
		t.Fatal("valid field still suppressed")
	}

	f.Set("1e400")
	f.resolve(required(f))
	if f.Err() == nil || f.Err().Key != "ValueOutOfRange" {
		t.Fatalf("overflow error %+v", f.Err())
	}
	f.setDerived(math.Inf(-1), 2)
	f.resolve(required(f))
	if f.Text() != "" || f.Err() == nil || f.Err().Key != "ValueOutOfRange" {
		t.Fatalf("derived overflow text=%q err=%+v", f.Text(), f.Err())
	}

	opt := newOptionField(OrderMarket, OrderLimit)
	opt.Set("stop")
	opt.resolve(required(opt))
	if opt.Err() == nil || opt.Err().Key != "UnknownOption" {
		t.Fatalf("option error %+v", opt.Err())
	}
}
