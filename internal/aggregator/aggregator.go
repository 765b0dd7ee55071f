// Package aggregator orchestrates the rate sources and maintains the cached
// snapshot: fetch from every source, merge over the previous snapshot,
// persist atomically, append to history.
package aggregator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutahub/valutahub/internal/domain"
	"github.com/valutahub/valutahub/internal/sources"
	"go.uber.org/zap"
)

// RateCache is the durable snapshot/history store the aggregator writes to.
type RateCache interface {
	Load() (*domain.Snapshot, error)
	Save(snap *domain.Snapshot) error
	AppendHistory(rec domain.HistoryRecord) error
}

// Aggregator runs the fetch-merge-persist pipeline over a fixed source list.
type Aggregator struct {
	srcs   []sources.Source
	cache  RateCache
	logger *zap.Logger
}

// New creates an aggregator over the given sources and cache.
func New(srcs []sources.Source, cache RateCache, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{srcs: srcs, cache: cache, logger: logger}
}

// Update performs one aggregation run and returns the merged snapshot.
//
// One source failing must not abort the run: its error is logged and the next
// source is queried. Only when every source fails or returns nothing does the
// run fail with domain.ErrNoRatesAvailable, leaving the cached snapshot
// byte-identical to before the run. Merging keeps every previously cached
// pair (original observation timestamps included) and overlays the freshly
// fetched pairs, later sources overwriting earlier ones on key collisions.
func (a *Aggregator) Update(ctx context.Context) (*domain.Snapshot, error) {
	a.logger.Info("rate update started", zap.Int("sources", len(a.srcs)))

	prev, err := a.cache.Load()
	if err != nil {
		a.logger.Error("failed to load previous snapshot, starting empty", zap.Error(err))
		prev = domain.NewSnapshot()
	}

	fetched := make(map[string]decimal.Decimal)
	for _, src := range a.srcs {
		pairs, err := src.Fetch(ctx)
		if err != nil {
			a.logger.Error("source fetch failed",
				zap.String("source", src.Name()),
				zap.Error(err))
			continue
		}
		for key, rate := range pairs {
			if rate.LessThanOrEqual(decimal.Zero) {
				continue
			}
			fetched[key] = rate
		}
		a.logger.Info("source fetch ok",
			zap.String("source", src.Name()),
			zap.Int("pairs", len(pairs)))
	}

	if len(fetched) == 0 {
		a.logger.Error("rate update failed: no source returned any pairs")
		return nil, domain.ErrNoRatesAvailable
	}

	now := time.Now().UTC()
	merged := domain.NewSnapshot()
	for key, q := range prev.Quotes {
		merged.Quotes[key] = q
	}
	observedAt := now.Format(domain.TimeLayout)
	for key, rate := range fetched {
		pair, err := domain.ParsePairKey(key)
		if err != nil {
			a.logger.Warn("skipping malformed pair key", zap.String("key", key))
			continue
		}
		merged.Quotes[key] = domain.Quote{Pair: pair, Rate: rate, ObservedAt: observedAt}
	}
	merged.Source = "aggregator"
	merged.RefreshedAt = observedAt
	merged.RefreshedAtEpoch = now.Unix()

	if err := a.cache.Save(merged); err != nil {
		// nothing tolerates a failed snapshot replace
		return nil, errors.Wrap(err, "persist snapshot")
	}

	if err := a.cache.AppendHistory(domain.HistoryRecord{
		Timestamp: merged.RefreshedAt,
		Source:    merged.Source,
		Pairs:     merged.Quotes,
	}); err != nil {
		a.logger.Error("failed to append history record", zap.Error(err))
	}

	a.logger.Info("rate update done",
		zap.Int("new_pairs", len(fetched)),
		zap.Int("total_pairs", len(merged.Quotes)),
		zap.String("last_refresh", merged.RefreshedAt))
	return merged, nil
}
