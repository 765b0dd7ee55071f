package rates

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/valutahub/valutahub/internal/domain"
)

// SnapshotLoader reads the current snapshot from the rate cache.
type SnapshotLoader interface {
	Load() (*domain.Snapshot, error)
}

// Info is the answer to a freshness-gated rate query.
type Info struct {
	From      string
	To        string
	Rate      decimal.Decimal
	Inverse   decimal.Decimal
	UpdatedAt string
}

// Service answers rate queries that require guaranteed recency.
type Service struct {
	cache    SnapshotLoader
	registry *domain.Registry
	ttl      time.Duration
}

// NewService creates a rate query service with the given freshness TTL.
func NewService(cache SnapshotLoader, registry *domain.Registry, ttl time.Duration) *Service {
	return &Service{cache: cache, registry: registry, ttl: ttl}
}

// Rate validates both codes against the registry, rejects a stale cache with
// domain.ErrStaleCache and resolves the pair bidirectionally. The pair may
// well exist in a stale cache: staleness is reported first and distinctly.
func (s *Service) Rate(from, to string) (*Info, error) {
	snap, err := s.cache.Load()
	if err != nil {
		return nil, err
	}
	if !Fresh(snap, s.ttl) {
		return nil, domain.ErrStaleCache
	}

	fromCur, err := s.registry.Get(from)
	if err != nil {
		return nil, err
	}
	toCur, err := s.registry.Get(to)
	if err != nil {
		return nil, err
	}

	rate, err := Resolve(fromCur.Code, toCur.Code, snap)
	if err != nil {
		return nil, err
	}

	inverse := decimal.NewFromInt(1)
	if !rate.IsZero() {
		inverse = decimal.NewFromInt(1).Div(rate)
	}

	return &Info{
		From:      fromCur.Code,
		To:        toCur.Code,
		Rate:      rate,
		Inverse:   inverse,
		UpdatedAt: UpdatedAt(fromCur.Code, toCur.Code, snap),
	}, nil
}
