// Package ledger values portfolios against a cached rate snapshot.
// Wallet mutation rules (positive amounts, non-negative balances) live on
// domain.Wallet; this package owns the conversions.
package ledger

import (
	"github.com/shopspring/decimal"
	"github.com/valutahub/valutahub/internal/domain"
	"github.com/valutahub/valutahub/internal/rates"
)

// Line is one wallet of a valuation report.
type Line struct {
	Code    string
	Balance decimal.Decimal
	// Value is the balance converted into the report's base currency.
	Value decimal.Decimal
}

// TotalValue sums every wallet converted into baseCode. Valuation is
// all-or-nothing: a single wallet without a conversion path fails the whole
// call, there are no partial totals.
func TotalValue(p *domain.Portfolio, baseCode string, snap *domain.Snapshot) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, code := range p.Codes() {
		w := p.Wallets[code]
		rate, err := rates.Resolve(code, baseCode, snap)
		if err != nil {
			return decimal.Decimal{}, err
		}
		total = total.Add(w.Balance.Mul(rate))
	}
	return total, nil
}

// Report converts every wallet into baseCode and returns the per-wallet lines
// (sorted by code) plus the total. It fails exactly where TotalValue fails.
func Report(p *domain.Portfolio, baseCode string, snap *domain.Snapshot) ([]Line, decimal.Decimal, error) {
	lines := make([]Line, 0, len(p.Wallets))
	total := decimal.Zero
	for _, code := range p.Codes() {
		w := p.Wallets[code]
		rate, err := rates.Resolve(code, baseCode, snap)
		if err != nil {
			return nil, decimal.Decimal{}, err
		}
		value := w.Balance.Mul(rate)
		total = total.Add(value)
		lines = append(lines, Line{Code: code, Balance: w.Balance, Value: value})
	}
	return lines, total, nil
}
