package domain

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount rejects zero and negative amounts.
	ErrInvalidAmount = errors.New("amount must be a positive number")
	// ErrNoRatesAvailable means every source of an aggregation run failed or
	// returned nothing; the previous snapshot is left untouched.
	ErrNoRatesAvailable = errors.New("no rates available from any source")
	// ErrStaleCache means the cached snapshot is older than the configured TTL.
	ErrStaleCache = errors.New("cached rates are stale")
	// ErrSellSettlementCurrency rejects selling the settlement currency itself.
	ErrSellSettlementCurrency = errors.New("selling the settlement currency is not supported")

	ErrNotLoggedIn   = errors.New("login required")
	ErrUserNotFound  = errors.New("user not found")
	ErrWrongPassword = errors.New("wrong password")
	ErrUsernameTaken = errors.New("username already taken")
)

// SourceUnavailableError wraps a single provider failure: network error,
// non-200 status, timeout or malformed payload. The aggregation run recovers
// from it and continues with the remaining sources.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// RateUnavailableError means neither the direct nor the inverse pair exists
// in the snapshot.
type RateUnavailableError struct {
	From string
	To   string
}

func (e *RateUnavailableError) Error() string {
	return fmt.Sprintf("no rate for pair %s->%s", e.From, e.To)
}

// InsufficientFundsError carries the exact pre-call state of the wallet that
// could not cover the requested amount.
type InsufficientFundsError struct {
	Code      string
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s %s, required %s %s",
		e.Available.String(), e.Code, e.Required.String(), e.Code)
}

// UnknownCurrencyError means the code is not present in the currency registry.
type UnknownCurrencyError struct {
	Code string
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("unknown currency %q", e.Code)
}
