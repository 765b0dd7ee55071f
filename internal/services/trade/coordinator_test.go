package trade

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valutahub/valutahub/internal/domain"
	"github.com/valutahub/valutahub/internal/storage/portfolios"
	"github.com/valutahub/valutahub/internal/storage/ratecache"
	"github.com/valutahub/valutahub/internal/storage/tradelog"
	"go.uber.org/zap"
)

var testUser = domain.Session{UserID: 1, Username: "alice"}

type fixture struct {
	coordinator *Coordinator
	portfolios  *portfolios.Store
	journal     *tradelog.Journal
}

func newFixture(t *testing.T, balances map[string]float64, pairs map[string]float64) *fixture {
	t.Helper()
	dir := t.TempDir()

	cache := ratecache.NewStore(filepath.Join(dir, "rates.json"), filepath.Join(dir, "history.json"))
	snap := domain.NewSnapshot()
	for key, rate := range pairs {
		pair, err := domain.ParsePairKey(key)
		require.NoError(t, err)
		snap.Quotes[key] = domain.Quote{Pair: pair, Rate: decimal.NewFromFloat(rate), ObservedAt: "2026-08-30T12:00:00"}
	}
	snap.Source = "aggregator"
	snap.RefreshedAt = "2026-08-30T12:00:00"
	snap.RefreshedAtEpoch = 1787600000
	require.NoError(t, cache.Save(snap))

	store := portfolios.NewStore(filepath.Join(dir, "portfolios.json"))
	p := domain.NewPortfolio(testUser.UserID)
	for code, balance := range balances {
		require.NoError(t, p.EnsureWallet(code).Deposit(decimal.NewFromFloat(balance)))
	}
	require.NoError(t, store.Save(p))

	journal, err := tradelog.NewJournal(filepath.Join(dir, "trades"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	return &fixture{
		coordinator: NewCoordinator(store, cache, domain.NewRegistry(), journal, zap.NewNop()),
		portfolios:  store,
		journal:     journal,
	}
}

func (f *fixture) reload(t *testing.T) *domain.Portfolio {
	t.Helper()
	p, err := f.portfolios.Load(testUser.UserID)
	require.NoError(t, err)
	return p
}

func TestBuyDebitsUSDAndCreditsTarget(t *testing.T) {
	f := newFixture(t, map[string]float64{"USD": 1000}, map[string]float64{"BTC_USD": 50000})

	res, err := f.coordinator.Buy(testUser, "BTC", decimal.NewFromFloat(0.01))
	require.NoError(t, err)
	assert.InDelta(t, 500, res.Settlement.InexactFloat64(), 1e-9)
	assert.InDelta(t, 50000, res.Rate.InexactFloat64(), 1e-9)
	assert.InDelta(t, 500, res.NewUSD.InexactFloat64(), 1e-9)
	assert.InDelta(t, 0.01, res.NewCode.InexactFloat64(), 1e-9)

	p := f.reload(t)
	assert.InDelta(t, 500, p.Wallet("USD").Balance.InexactFloat64(), 1e-9)
	assert.InDelta(t, 0.01, p.Wallet("BTC").Balance.InexactFloat64(), 1e-9)
}

func TestBuyNormalizesCode(t *testing.T) {
	f := newFixture(t, map[string]float64{"USD": 1000}, map[string]float64{"BTC_USD": 50000})

	res, err := f.coordinator.Buy(testUser, "btc", decimal.NewFromFloat(0.01))
	require.NoError(t, err)
	assert.Equal(t, "BTC", res.Code)
}

func TestBuyInsufficientFundsLeavesPortfolioUntouched(t *testing.T) {
	f := newFixture(t, map[string]float64{"USD": 100}, map[string]float64{"BTC_USD": 50000})

	_, err := f.coordinator.Buy(testUser, "BTC", decimal.NewFromFloat(0.01))
	var insufficient *domain.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "USD", insufficient.Code)
	assert.InDelta(t, 100, insufficient.Available.InexactFloat64(), 1e-9)
	assert.InDelta(t, 500, insufficient.Required.InexactFloat64(), 1e-9)

	p := f.reload(t)
	assert.InDelta(t, 100, p.Wallet("USD").Balance.InexactFloat64(), 1e-9)
	assert.Nil(t, p.Wallet("BTC"))
}

func TestBuyRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t, map[string]float64{"USD": 1000}, map[string]float64{"BTC_USD": 50000})

	_, err := f.coordinator.Buy(testUser, "BTC", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.coordinator.Buy(testUser, "BTC", decimal.NewFromFloat(-1))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestBuyUnknownCurrency(t *testing.T) {
	f := newFixture(t, map[string]float64{"USD": 1000}, nil)

	_, err := f.coordinator.Buy(testUser, "XYZ", decimal.NewFromInt(1))
	var unknown *domain.UnknownCurrencyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "XYZ", unknown.Code)
}

func TestBuyWithoutRateFails(t *testing.T) {
	f := newFixture(t, map[string]float64{"USD": 1000}, map[string]float64{"ETH_USD": 3000})

	_, err := f.coordinator.Buy(testUser, "BTC", decimal.NewFromFloat(0.01))
	var unavailable *domain.RateUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "BTC", unavailable.From)
	assert.Equal(t, "USD", unavailable.To)

	p := f.reload(t)
	assert.InDelta(t, 1000, p.Wallet("USD").Balance.InexactFloat64(), 1e-9)
}

func TestBuyUSDIsIdentity(t *testing.T) {
	f := newFixture(t, map[string]float64{"USD": 1000}, nil)

	res, err := f.coordinator.Buy(testUser, "USD", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.InDelta(t, 1, res.Rate.InexactFloat64(), 1e-9)

	p := f.reload(t)
	assert.InDelta(t, 1000, p.Wallet("USD").Balance.InexactFloat64(), 1e-9, "buy USD debits and credits the same wallet")
}

func TestSellCreditsUSD(t *testing.T) {
	f := newFixture(t, map[string]float64{"USD": 500, "BTC": 0.01}, map[string]float64{"BTC_USD": 60000})

	res, err := f.coordinator.Sell(testUser, "BTC", decimal.NewFromFloat(0.01))
	require.NoError(t, err)
	assert.InDelta(t, 600, res.Settlement.InexactFloat64(), 1e-9)
	assert.True(t, res.NewCode.IsZero())
	assert.InDelta(t, 1100, res.NewUSD.InexactFloat64(), 1e-9)

	p := f.reload(t)
	assert.True(t, p.Wallet("BTC").Balance.IsZero())
	assert.InDelta(t, 1100, p.Wallet("USD").Balance.InexactFloat64(), 1e-9)
}

func TestSellUSDAlwaysRejected(t *testing.T) {
	f := newFixture(t, map[string]float64{"USD": 1000}, map[string]float64{"BTC_USD": 50000})

	_, err := f.coordinator.Sell(testUser, "USD", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, domain.ErrSellSettlementCurrency)

	_, err = f.coordinator.Sell(testUser, "usd", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, domain.ErrSellSettlementCurrency, "rejection is on the normalized code")
}

func TestSellMoreThanHeld(t *testing.T) {
	f := newFixture(t, map[string]float64{"BTC": 0.005}, map[string]float64{"BTC_USD": 50000})

	_, err := f.coordinator.Sell(testUser, "BTC", decimal.NewFromFloat(0.01))
	var insufficient *domain.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "BTC", insufficient.Code)
	assert.InDelta(t, 0.005, insufficient.Available.InexactFloat64(), 1e-9)

	p := f.reload(t)
	assert.InDelta(t, 0.005, p.Wallet("BTC").Balance.InexactFloat64(), 1e-9)
}

func TestSellNeverHeldCurrency(t *testing.T) {
	f := newFixture(t, map[string]float64{"USD": 500}, map[string]float64{"ETH_USD": 3000})

	_, err := f.coordinator.Sell(testUser, "ETH", decimal.NewFromInt(1))
	var insufficient *domain.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.IsZero())
}

func TestTradesAreJournaled(t *testing.T) {
	f := newFixture(t, map[string]float64{"USD": 1000}, map[string]float64{"BTC_USD": 50000})

	_, err := f.coordinator.Buy(testUser, "BTC", decimal.NewFromFloat(0.01))
	require.NoError(t, err)
	_, err = f.coordinator.Sell(testUser, "BTC", decimal.NewFromFloat(0.01))
	require.NoError(t, err)

	records, err := f.journal.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "buy", records[0].Action)
	assert.Equal(t, "sell", records[1].Action)
	assert.Equal(t, "alice", records[0].Username)
	assert.InDelta(t, 50000, records[0].Rate.InexactFloat64(), 1e-9)
}

func TestNilJournalIsTolerated(t *testing.T) {
	f := newFixture(t, map[string]float64{"USD": 1000}, map[string]float64{"BTC_USD": 50000})
	c := NewCoordinator(f.portfolios, f.coordinator.cache, domain.NewRegistry(), nil, zap.NewNop())

	_, err := c.Buy(testUser, "BTC", decimal.NewFromFloat(0.01))
	require.NoError(t, err)
}
