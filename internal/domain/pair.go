// Package domain defines the core data structures shared across valutahub.
package domain

import (
	"fmt"
	"strings"
)

// Pair is an ordered currency pair: 1 From = rate To.
type Pair struct {
	// From base currency code.
	From string
	// To quote currency code.
	To string
}

// String returns the canonical pair key, e.g. "BTC_USD".
func (p *Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// PairKey builds the canonical key for two currency codes.
func PairKey(from, to string) string {
	return from + "_" + to
}

// ParsePairKey splits a "FROM_TO" key into a Pair.
func ParsePairKey(key string) (Pair, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid pair key %q", key)
	}
	return Pair{From: parts[0], To: parts[1]}, nil
}
