package aggregator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valutahub/valutahub/internal/domain"
	"github.com/valutahub/valutahub/internal/sources"
	"github.com/valutahub/valutahub/internal/storage/ratecache"
	"go.uber.org/zap"
)

type stubSource struct {
	name  string
	pairs map[string]float64
	err   error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]decimal.Decimal, len(s.pairs))
	for key, rate := range s.pairs {
		out[key] = decimal.NewFromFloat(rate)
	}
	return out, nil
}

func newTestCache(t *testing.T) (*ratecache.Store, string) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.json")
	return ratecache.NewStore(path, filepath.Join(dir, "history.json")), path
}

func TestUpdateMergesAllSources(t *testing.T) {
	cache, _ := newTestCache(t)
	agg := New([]sources.Source{
		&stubSource{name: "crypto", pairs: map[string]float64{"BTC_USD": 50000, "ETH_USD": 3000}},
		&stubSource{name: "fiat", pairs: map[string]float64{"EUR_USD": 0.927}},
	}, cache, zap.NewNop())

	snap, err := agg.Update(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Quotes, 3)
	assert.Equal(t, "aggregator", snap.Source)
	assert.NotEmpty(t, snap.RefreshedAt)
	assert.NotZero(t, snap.RefreshedAtEpoch)

	persisted, err := cache.Load()
	require.NoError(t, err)
	assert.Len(t, persisted.Quotes, 3)
}

func TestUpdateToleratesPartialFailure(t *testing.T) {
	cache, _ := newTestCache(t)
	agg := New([]sources.Source{
		&stubSource{name: "crypto", pairs: map[string]float64{"BTC_USD": 50000}},
		&stubSource{name: "fiat", err: &domain.SourceUnavailableError{Source: "fiat", Err: errors.New("HTTP 500")}},
	}, cache, zap.NewNop())

	snap, err := agg.Update(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Quotes, 1)
	assert.Contains(t, snap.Quotes, "BTC_USD")
}

func TestUpdateCarriesForwardPreviousPairs(t *testing.T) {
	cache, _ := newTestCache(t)

	prev := domain.NewSnapshot()
	prev.Quotes["EUR_USD"] = domain.Quote{
		Pair:       domain.Pair{From: "EUR", To: "USD"},
		Rate:       decimal.NewFromFloat(0.9),
		ObservedAt: "2026-08-29T09:00:00",
	}
	prev.Source = "aggregator"
	prev.RefreshedAt = "2026-08-29T09:00:00"
	prev.RefreshedAtEpoch = 1787500000
	require.NoError(t, cache.Save(prev))

	agg := New([]sources.Source{
		&stubSource{name: "crypto", pairs: map[string]float64{"BTC_USD": 51000}},
	}, cache, zap.NewNop())

	snap, err := agg.Update(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Quotes, 2)

	// the pair whose source dropped out survives with its original timestamp
	eur := snap.Quotes["EUR_USD"]
	assert.InDelta(t, 0.9, eur.Rate.InexactFloat64(), 1e-9)
	assert.Equal(t, "2026-08-29T09:00:00", eur.ObservedAt)

	btc := snap.Quotes["BTC_USD"]
	assert.Equal(t, snap.RefreshedAt, btc.ObservedAt, "fresh pairs get the run timestamp")
}

func TestUpdateLastWriterWinsAcrossSources(t *testing.T) {
	cache, _ := newTestCache(t)
	agg := New([]sources.Source{
		&stubSource{name: "first", pairs: map[string]float64{"BTC_USD": 50000}},
		&stubSource{name: "second", pairs: map[string]float64{"BTC_USD": 50100}},
	}, cache, zap.NewNop())

	snap, err := agg.Update(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 50100, snap.Quotes["BTC_USD"].Rate.InexactFloat64(), 1e-9)
}

func TestUpdateAllSourcesFailingLeavesCacheUntouched(t *testing.T) {
	cache, path := newTestCache(t)

	prev := domain.NewSnapshot()
	prev.Quotes["BTC_USD"] = domain.Quote{
		Pair:       domain.Pair{From: "BTC", To: "USD"},
		Rate:       decimal.NewFromInt(50000),
		ObservedAt: "2026-08-29T09:00:00",
	}
	prev.Source = "aggregator"
	prev.RefreshedAt = "2026-08-29T09:00:00"
	prev.RefreshedAtEpoch = 1787500000
	require.NoError(t, cache.Save(prev))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	agg := New([]sources.Source{
		&stubSource{name: "a", err: errors.New("down")},
		&stubSource{name: "b", pairs: map[string]float64{}},
	}, cache, zap.NewNop())

	_, err = agg.Update(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoRatesAvailable)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed run must leave the snapshot file byte-identical")
}

type flakyHistoryCache struct {
	*ratecache.Store
}

func (c *flakyHistoryCache) AppendHistory(domain.HistoryRecord) error {
	return errors.New("history disk full")
}

func TestUpdateSurvivesFailedHistoryAppend(t *testing.T) {
	cache, _ := newTestCache(t)
	agg := New([]sources.Source{
		&stubSource{name: "crypto", pairs: map[string]float64{"BTC_USD": 50000}},
	}, &flakyHistoryCache{cache}, zap.NewNop())

	snap, err := agg.Update(context.Background())
	require.NoError(t, err, "history append failure must not fail the run")
	assert.Len(t, snap.Quotes, 1)

	persisted, err := cache.Load()
	require.NoError(t, err)
	assert.Len(t, persisted.Quotes, 1, "snapshot still replaced")
}

func TestUpdateAppendsHistory(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.json")
	cache := ratecache.NewStore(filepath.Join(dir, "rates.json"), historyPath)

	agg := New([]sources.Source{
		&stubSource{name: "crypto", pairs: map[string]float64{"BTC_USD": 50000}},
	}, cache, zap.NewNop())

	_, err := agg.Update(context.Background())
	require.NoError(t, err)
	_, err = agg.Update(context.Background())
	require.NoError(t, err)

	payload, err := os.ReadFile(historyPath)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "BTC_USD")

	var history []json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &history))
	assert.Len(t, history, 2, "one history record per successful run")
}
