package rates

import (
	"time"

	"github.com/valutahub/valutahub/internal/domain"
)

// Fresh reports whether the snapshot is young enough for freshness-gated
// queries. The epoch marker wins when present; a zero epoch falls back to
// parsing the ISO refresh timestamp. A snapshot with neither is never fresh.
//
// Resolver lookups used for portfolio valuation deliberately bypass this
// check and tolerate any cached value.
func Fresh(snap *domain.Snapshot, ttl time.Duration) bool {
	if snap == nil {
		return false
	}
	now := time.Now().UTC()

	if snap.RefreshedAtEpoch > 0 {
		age := now.Sub(time.Unix(snap.RefreshedAtEpoch, 0))
		return age <= ttl
	}
	if snap.RefreshedAt != "" {
		refreshed, err := time.ParseInLocation(domain.TimeLayout, snap.RefreshedAt, time.UTC)
		if err != nil {
			return false
		}
		return now.Sub(refreshed) <= ttl
	}
	return false
}
