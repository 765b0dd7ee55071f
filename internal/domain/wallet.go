package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Wallet holds the balance of one currency. The balance never goes negative.
type Wallet struct {
	Code    string
	Balance decimal.Decimal
}

// Deposit adds a strictly positive amount to the balance.
func (w *Wallet) Deposit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	w.Balance = w.Balance.Add(amount)
	return nil
}

// Withdraw removes a strictly positive amount not exceeding the balance.
// On insufficient funds the returned error carries the pre-call state.
func (w *Wallet) Withdraw(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(w.Balance) {
		return &InsufficientFundsError{Code: w.Code, Available: w.Balance, Required: amount}
	}
	w.Balance = w.Balance.Sub(amount)
	return nil
}

// Portfolio maps currency codes to wallets for one user. Wallets are created
// lazily on first credit; at most one wallet exists per code.
type Portfolio struct {
	UserID  int64
	Wallets map[string]*Wallet
}

// NewPortfolio returns an empty portfolio for the user.
func NewPortfolio(userID int64) *Portfolio {
	return &Portfolio{UserID: userID, Wallets: make(map[string]*Wallet)}
}

// Wallet returns the wallet for code, or nil if the user never held it.
func (p *Portfolio) Wallet(code string) *Wallet {
	return p.Wallets[code]
}

// EnsureWallet returns the wallet for code, creating a zero-balance one if
// missing.
func (p *Portfolio) EnsureWallet(code string) *Wallet {
	if w, ok := p.Wallets[code]; ok {
		return w
	}
	w := &Wallet{Code: code, Balance: decimal.Zero}
	p.Wallets[code] = w
	return w
}

// Codes returns the held currency codes in sorted order.
func (p *Portfolio) Codes() []string {
	codes := make([]string, 0, len(p.Wallets))
	for code := range p.Wallets {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
