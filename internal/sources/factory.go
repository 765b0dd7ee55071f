package sources

import (
	"time"

	"github.com/pkg/errors"
)

// Options carries everything the factory needs to construct sources.
type Options struct {
	// Base is the settlement currency every pair is quoted in.
	Base string
	// FiatCodes and CryptoCodes select which pairs each source fetches.
	FiatCodes   []string
	CryptoCodes []string
	// CryptoIDs maps currency codes to CoinGecko coin ids.
	CryptoIDs map[string]string
	// BinanceSymbols maps exchange symbols to cache pair keys.
	BinanceSymbols map[string]string
	// ExchangeRateAPIKey enables the fiat source when set.
	ExchangeRateAPIKey string
	Timeout            time.Duration
}

// Build constructs the named sources in the given order. Supported names are
// coingecko, exchangerate and binance; an unknown name fails the whole call.
func Build(names []string, opts Options) ([]Source, error) {
	out := make([]Source, 0, len(names))
	for _, name := range names {
		switch name {
		case "coingecko":
			out = append(out, NewCoinGecko("", opts.CryptoCodes, opts.Base, opts.CryptoIDs, opts.Timeout))
		case "exchangerate":
			out = append(out, NewExchangeRateAPI("", opts.ExchangeRateAPIKey, opts.Base, opts.FiatCodes, opts.Timeout))
		case "binance":
			out = append(out, NewBinance(opts.BinanceSymbols, opts.Timeout))
		default:
			return nil, errors.Errorf("unknown rate source %q", name)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no rate sources configured")
	}
	return out, nil
}
