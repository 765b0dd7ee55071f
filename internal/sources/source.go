// Package sources implements the external rate providers. Each source fetches
// quotes only for its own configured currency set against one quote currency
// and never touches shared state; a failed fetch is reported as a
// domain.SourceUnavailableError and recovered by the aggregator.
package sources

import (
	"context"

	"github.com/shopspring/decimal"
)

// Source is one external rate provider.
type Source interface {
	// Name identifies the provider in logs and errors.
	Name() string
	// Fetch returns a pair-key → rate mapping for the provider's currency set.
	Fetch(ctx context.Context) (map[string]decimal.Decimal, error)
}
