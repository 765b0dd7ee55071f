package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CurrencyKind distinguishes fiat currencies from crypto assets.
type CurrencyKind string

const (
	KindFiat   CurrencyKind = "fiat"
	KindCrypto CurrencyKind = "crypto"
)

// Currency is one registry entry.
type Currency struct {
	Code string
	Name string
	Kind CurrencyKind
	// IssuingCountry is set for fiat currencies.
	IssuingCountry string
	// Algorithm and MarketCap are set for crypto currencies.
	Algorithm string
	MarketCap float64
}

// DisplayInfo renders the registry line shown by the currencies command.
func (c Currency) DisplayInfo() string {
	if c.Kind == KindCrypto {
		return fmt.Sprintf("[CRYPTO] %s — %s (Algo: %s, MCAP: %.2e)", c.Code, c.Name, c.Algorithm, c.MarketCap)
	}
	return fmt.Sprintf("[FIAT] %s — %s (Issuing: %s)", c.Code, c.Name, c.IssuingCountry)
}

var codePattern = regexp.MustCompile(`^[A-Z0-9]{2,5}$`)

// NormalizeCode upper-cases and validates a currency code: 2-5 latin
// alphanumeric characters. It does not check registry membership.
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !codePattern.MatchString(c) {
		return "", &UnknownCurrencyError{Code: code}
	}
	return c, nil
}

// Registry maps currency codes to their metadata. It is an explicit value
// passed into the services that validate codes, not process-global state.
type Registry struct {
	currencies map[string]Currency
}

// NewRegistry returns a registry pre-seeded with the supported currencies.
func NewRegistry() *Registry {
	r := &Registry{currencies: make(map[string]Currency)}
	for _, c := range []Currency{
		{Code: "USD", Name: "US Dollar", Kind: KindFiat, IssuingCountry: "United States"},
		{Code: "EUR", Name: "Euro", Kind: KindFiat, IssuingCountry: "Eurozone"},
		{Code: "GBP", Name: "Pound Sterling", Kind: KindFiat, IssuingCountry: "United Kingdom"},
		{Code: "RUB", Name: "Russian Ruble", Kind: KindFiat, IssuingCountry: "Russia"},
		{Code: "BTC", Name: "Bitcoin", Kind: KindCrypto, Algorithm: "SHA-256", MarketCap: 1.12e12},
		{Code: "ETH", Name: "Ethereum", Kind: KindCrypto, Algorithm: "Ethash", MarketCap: 4.50e11},
		{Code: "SOL", Name: "Solana", Kind: KindCrypto, Algorithm: "PoH", MarketCap: 8.90e10},
	} {
		r.currencies[c.Code] = c
	}
	return r
}

// Register adds or overwrites a registry entry.
func (r *Registry) Register(c Currency) error {
	code, err := NormalizeCode(c.Code)
	if err != nil {
		return err
	}
	c.Code = code
	r.currencies[code] = c
	return nil
}

// Get resolves a code to its currency, normalizing it first.
func (r *Registry) Get(code string) (Currency, error) {
	c, err := NormalizeCode(code)
	if err != nil {
		return Currency{}, err
	}
	cur, ok := r.currencies[c]
	if !ok {
		return Currency{}, &UnknownCurrencyError{Code: c}
	}
	return cur, nil
}

// All returns every registered currency ordered by code.
func (r *Registry) All() []Currency {
	out := make([]Currency, 0, len(r.currencies))
	for _, c := range r.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
