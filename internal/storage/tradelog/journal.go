// Package tradelog keeps an append-only journal of executed trades in a
// write-ahead log, separate from the mutable portfolio document.
package tradelog

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"
)

const (
	tradeKeyPrefix   = "trade_"
	segmentThreshold = 1000
	maxSegments      = 100
)

// Record is one executed trade. Quote is the settlement-currency leg: the
// cost of a buy or the revenue of a sell.
type Record struct {
	ID       string          `json:"id"`
	UserID   int64           `json:"user_id"`
	Username string          `json:"username"`
	Action   string          `json:"action"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Rate     decimal.Decimal `json:"rate"`
	Quote    decimal.Decimal `json:"quote"`
	Time     time.Time       `json:"time"`
}

// Journal persists trade records in a WAL.
type Journal struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewJournal opens (or creates) the journal in the given directory.
func NewJournal(dir string) (*Journal, error) {
	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "trade_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal WAL")
	}
	return &Journal{wal: wal}, nil
}

// Append assigns the record an ID and writes it to the log. Records are never
// mutated afterwards.
func (j *Journal) Append(rec Record) (string, error) {
	if j == nil || j.wal == nil {
		return "", errors.New("trade journal is not initialized")
	}
	rec.ID = uuid.New().String()

	payload, err := json.Marshal(rec)
	if err != nil {
		return "", errors.Wrap(err, "marshal trade record")
	}
	key := fmt.Sprintf("%s%s", tradeKeyPrefix, rec.ID)

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.wal.Write(j.wal.CurrentIndex()+1, key, payload); err != nil {
		return "", errors.Wrap(err, "append trade record")
	}
	return rec.ID, nil
}

// Records returns every journaled trade in write order.
func (j *Journal) Records() ([]Record, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("trade journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	var records []Record
	for msg := range j.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, tradeKeyPrefix) {
			continue
		}
		var rec Record
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			return nil, errors.Wrap(err, "decode trade record")
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return nil
	}
	return j.wal.Close()
}
