// Package audit emits one structured log line per user-facing action, whether
// it succeeded or failed. The line is the operational audit trail; it never
// alters the outcome of the action itself.
package audit

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Entry describes one user action for the audit trail.
type Entry struct {
	Action   string
	Username string
	Currency string
	Amount   decimal.Decimal
	Rate     decimal.Decimal
}

// Auditor writes audit entries through a zap logger.
type Auditor struct {
	logger *zap.Logger
}

// New creates an auditor. A nil logger disables output.
func New(logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{logger: logger}
}

// Record logs the outcome of one action. A nil err is an OK line, anything
// else an ERROR line carrying the error type and message.
func (a *Auditor) Record(e Entry, err error) {
	fields := []zap.Field{
		zap.String("action", e.Action),
	}
	if e.Username != "" {
		fields = append(fields, zap.String("user", e.Username))
	}
	if e.Currency != "" {
		fields = append(fields, zap.String("currency", e.Currency))
	}
	if !e.Amount.IsZero() {
		fields = append(fields, zap.String("amount", e.Amount.String()))
	}
	if !e.Rate.IsZero() {
		fields = append(fields, zap.String("rate", e.Rate.String()))
	}

	if err == nil {
		fields = append(fields, zap.String("result", "OK"))
		a.logger.Info("action completed", fields...)
		return
	}
	fields = append(fields,
		zap.String("result", "ERROR"),
		zap.String("error_type", fmt.Sprintf("%T", err)),
		zap.String("error", err.Error()),
	)
	a.logger.Warn("action failed", fields...)
}
