package sources

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/valutahub/valutahub/internal/domain"
)

// Binance fetches spot prices through the public Binance API. No API key is
// needed for ticker prices. symbolPairs maps exchange symbols to cache pair
// keys, e.g. BTCUSDT → BTC_USD.
type Binance struct {
	client      *binance.Client
	symbolPairs map[string]string
	timeout     time.Duration
}

// NewBinance creates a Binance spot price source.
func NewBinance(symbolPairs map[string]string, timeout time.Duration) *Binance {
	return &Binance{
		client:      binance.NewClient("", ""),
		symbolPairs: symbolPairs,
		timeout:     timeout,
	}
}

func (b *Binance) Name() string { return "binance" }

// Fetch lists prices for the configured symbols and maps them to pair keys.
// Unparseable or non-positive prices are skipped.
func (b *Binance) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	if len(b.symbolPairs) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	symbols := make([]string, 0, len(b.symbolPairs))
	for symbol := range b.symbolPairs {
		symbols = append(symbols, symbol)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	prices, err := b.client.NewListPricesService().Symbols(symbols).Do(ctx)
	if err != nil {
		return nil, &domain.SourceUnavailableError{Source: b.Name(), Err: err}
	}

	out := make(map[string]decimal.Decimal)
	for _, p := range prices {
		key, ok := b.symbolPairs[p.Symbol]
		if !ok {
			continue
		}
		rate, err := decimal.NewFromString(p.Price)
		if err != nil || rate.LessThanOrEqual(decimal.Zero) {
			continue
		}
		out[key] = rate
	}
	return out, nil
}
