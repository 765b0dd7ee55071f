// Package rates resolves conversion rates from a cached snapshot.
package rates

import (
	"github.com/shopspring/decimal"
	"github.com/valutahub/valutahub/internal/domain"
)

// Resolve returns the conversion rate from → to using the snapshot: identity
// for equal codes, then the direct pair, then the inverted inverse pair.
// It is pure: no I/O, no side effects.
func Resolve(from, to string, snap *domain.Snapshot) (decimal.Decimal, error) {
	f, err := domain.NormalizeCode(from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	t, err := domain.NormalizeCode(to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if f == t {
		return decimal.NewFromInt(1), nil
	}
	if snap != nil {
		if q, ok := snap.Quotes[domain.PairKey(f, t)]; ok {
			return q.Rate, nil
		}
		if q, ok := snap.Quotes[domain.PairKey(t, f)]; ok && !q.Rate.IsZero() {
			return decimal.NewFromInt(1).Div(q.Rate), nil
		}
	}
	return decimal.Decimal{}, &domain.RateUnavailableError{From: f, To: t}
}

// UpdatedAt returns the observation timestamp backing Resolve(from, to): the
// direct record's timestamp, else the inverse record's, else "".
func UpdatedAt(from, to string, snap *domain.Snapshot) string {
	if snap == nil {
		return ""
	}
	f, err := domain.NormalizeCode(from)
	if err != nil {
		return ""
	}
	t, err := domain.NormalizeCode(to)
	if err != nil {
		return ""
	}
	if q, ok := snap.Quotes[domain.PairKey(f, t)]; ok {
		return q.ObservedAt
	}
	if q, ok := snap.Quotes[domain.PairKey(t, f)]; ok {
		return q.ObservedAt
	}
	return ""
}
