package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the timestamp format used in the rate cache and history files:
// UTC, second precision, no zone suffix.
const TimeLayout = "2006-01-02T15:04:05"

// UTCNow returns the current UTC time formatted with TimeLayout.
func UTCNow() string {
	return time.Now().UTC().Format(TimeLayout)
}

// Quote is the latest known exchange rate for one pair.
type Quote struct {
	Pair Pair
	// Rate is strictly positive: 1 Pair.From = Rate Pair.To.
	Rate decimal.Decimal
	// ObservedAt is the TimeLayout timestamp of the fetch that produced the rate.
	ObservedAt string
}

// Snapshot is the authoritative latest-known rate table plus refresh metadata.
// It is replaced wholesale on each successful aggregation; individual pairs
// are upserted by key, so a pair survives runs where its source dropped out.
type Snapshot struct {
	Quotes           map[string]Quote
	Source           string
	RefreshedAt      string
	RefreshedAtEpoch int64
}

// NewSnapshot returns an empty snapshot ready for upserts.
func NewSnapshot() *Snapshot {
	return &Snapshot{Quotes: make(map[string]Quote)}
}

// Empty reports whether the snapshot holds no quotes.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Quotes) == 0
}

// Flatten reduces the snapshot to a pair-key → rate mapping.
func (s *Snapshot) Flatten() map[string]decimal.Decimal {
	flat := make(map[string]decimal.Decimal, len(s.Quotes))
	for key, q := range s.Quotes {
		flat[key] = q.Rate
	}
	return flat
}

// HistoryRecord is one immutable entry of the append-only aggregation history.
type HistoryRecord struct {
	Timestamp string
	Source    string
	Pairs     map[string]Quote
}
