// Package trade executes buy and sell operations as single logical
// transactions over the ledger and the rate cache.
package trade

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutahub/valutahub/internal/domain"
	"github.com/valutahub/valutahub/internal/rates"
	"github.com/valutahub/valutahub/internal/storage/tradelog"
	"go.uber.org/zap"
)

// SettlementCurrency is the currency every trade is routed through. It can be
// bought like any other currency but never sold.
const SettlementCurrency = "USD"

// PortfolioStore loads and saves one user's wallets. Save must replace the
// portfolio document in a single atomic write.
type PortfolioStore interface {
	Load(userID int64) (*domain.Portfolio, error)
	Save(p *domain.Portfolio) error
}

// SnapshotLoader reads the current rate snapshot.
type SnapshotLoader interface {
	Load() (*domain.Snapshot, error)
}

// Result describes an executed trade for display: the rate used, the
// settlement leg and both wallets before and after.
type Result struct {
	Action     string
	Code       string
	Amount     decimal.Decimal
	Rate       decimal.Decimal
	Settlement decimal.Decimal
	PrevCode   decimal.Decimal
	NewCode    decimal.Decimal
	PrevUSD    decimal.Decimal
	NewUSD     decimal.Decimal
}

// Coordinator validates, prices, applies and persists trades. It never owns
// durability itself: wallets go through the portfolio store, rates come from
// the cache, executed trades are journaled.
type Coordinator struct {
	portfolios PortfolioStore
	cache      SnapshotLoader
	registry   *domain.Registry
	journal    *tradelog.Journal
	logger     *zap.Logger
}

// NewCoordinator creates a trade coordinator. The journal may be nil, in
// which case executed trades are not journaled.
func NewCoordinator(portfolios PortfolioStore, cache SnapshotLoader, registry *domain.Registry, journal *tradelog.Journal, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		portfolios: portfolios,
		cache:      cache,
		registry:   registry,
		journal:    journal,
		logger:     logger,
	}
}

// Buy purchases amount of currencyCode, debiting the USD wallet by
// amount*rate. Validation and rate resolution happen before any mutation;
// the portfolio is persisted in one write, so a reader sees either the
// pre-trade or the fully post-trade state.
func (c *Coordinator) Buy(user domain.Session, currencyCode string, amount decimal.Decimal) (*Result, error) {
	code, err := c.validate(currencyCode, amount)
	if err != nil {
		return nil, err
	}

	rate, err := c.resolveToUSD(code)
	if err != nil {
		return nil, err
	}
	cost := amount.Mul(rate)

	portfolio, err := c.portfolios.Load(user.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load portfolio")
	}

	usd := portfolio.EnsureWallet(SettlementCurrency)
	target := portfolio.EnsureWallet(code)
	prevUSD, prevTarget := usd.Balance, target.Balance

	if err := usd.Withdraw(cost); err != nil {
		return nil, err
	}
	if err := target.Deposit(amount); err != nil {
		return nil, err
	}

	if err := c.portfolios.Save(portfolio); err != nil {
		return nil, errors.Wrap(err, "persist portfolio")
	}

	c.journalTrade(user, "buy", code, amount, rate, cost)

	return &Result{
		Action:     "buy",
		Code:       code,
		Amount:     amount,
		Rate:       rate,
		Settlement: cost,
		PrevCode:   prevTarget,
		NewCode:    target.Balance,
		PrevUSD:    prevUSD,
		NewUSD:     usd.Balance,
	}, nil
}

// Sell disposes amount of currencyCode, crediting the USD wallet with
// amount*rate. Selling the settlement currency itself is rejected outright.
func (c *Coordinator) Sell(user domain.Session, currencyCode string, amount decimal.Decimal) (*Result, error) {
	code, err := c.validate(currencyCode, amount)
	if err != nil {
		return nil, err
	}
	if code == SettlementCurrency {
		return nil, domain.ErrSellSettlementCurrency
	}

	portfolio, err := c.portfolios.Load(user.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load portfolio")
	}

	source := portfolio.EnsureWallet(code)
	if amount.GreaterThan(source.Balance) {
		return nil, &domain.InsufficientFundsError{Code: code, Available: source.Balance, Required: amount}
	}

	rate, err := c.resolveToUSD(code)
	if err != nil {
		return nil, err
	}
	revenue := amount.Mul(rate)

	usd := portfolio.EnsureWallet(SettlementCurrency)
	prevUSD, prevSource := usd.Balance, source.Balance

	if err := source.Withdraw(amount); err != nil {
		return nil, err
	}
	if err := usd.Deposit(revenue); err != nil {
		return nil, err
	}

	if err := c.portfolios.Save(portfolio); err != nil {
		return nil, errors.Wrap(err, "persist portfolio")
	}

	c.journalTrade(user, "sell", code, amount, rate, revenue)

	return &Result{
		Action:     "sell",
		Code:       code,
		Amount:     amount,
		Rate:       rate,
		Settlement: revenue,
		PrevCode:   prevSource,
		NewCode:    source.Balance,
		PrevUSD:    prevUSD,
		NewUSD:     usd.Balance,
	}, nil
}

func (c *Coordinator) validate(currencyCode string, amount decimal.Decimal) (string, error) {
	cur, err := c.registry.Get(currencyCode)
	if err != nil {
		return "", err
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return "", domain.ErrInvalidAmount
	}
	return cur.Code, nil
}

func (c *Coordinator) resolveToUSD(code string) (decimal.Decimal, error) {
	snap, err := c.cache.Load()
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "load rate snapshot")
	}
	return rates.Resolve(code, SettlementCurrency, snap)
}

// journalTrade records the executed trade. The trade already happened and is
// durable, so a journal failure is logged rather than propagated.
func (c *Coordinator) journalTrade(user domain.Session, action, code string, amount, rate, settlement decimal.Decimal) {
	if c.journal == nil {
		return
	}
	_, err := c.journal.Append(tradelog.Record{
		UserID:   user.UserID,
		Username: user.Username,
		Action:   action,
		Currency: code,
		Amount:   amount,
		Rate:     rate,
		Quote:    settlement,
		Time:     time.Now().UTC(),
	})
	if err != nil {
		c.logger.Error("failed to journal trade",
			zap.String("action", action),
			zap.String("currency", code),
			zap.Error(err))
	}
}
