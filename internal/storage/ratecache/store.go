// Package ratecache persists the rate snapshot and its aggregation history as
// whole-file JSON documents. Every write goes through a temp file followed by
// an atomic rename, so readers never observe a torn file.
package ratecache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutahub/valutahub/internal/domain"
)

// Reserved top-level snapshot keys. Readers must treat them as metadata,
// never as pairs.
const (
	keySource       = "source"
	keyLastRefresh  = "last_refresh"
	keyRefreshEpoch = "last_refresh_epoch"
)

// Store owns durability of the snapshot file and the history file.
type Store struct {
	path        string
	historyPath string
}

// NewStore creates a rate cache store over the given file paths.
func NewStore(path, historyPath string) *Store {
	return &Store{path: path, historyPath: historyPath}
}

type quoteRecord struct {
	Rate      float64 `json:"rate"`
	UpdatedAt string  `json:"updated_at"`
}

type historyRecord struct {
	Timestamp string                 `json:"ts"`
	Source    string                 `json:"source"`
	Pairs     map[string]quoteRecord `json:"pairs"`
}

// Load reads the current snapshot. A missing or unreadable file yields an
// empty snapshot, not an error: the aggregator starts from scratch in that
// case and readers simply find no pairs.
func (s *Store) Load() (*domain.Snapshot, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewSnapshot(), nil
		}
		return nil, errors.Wrap(err, "read rate cache")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return domain.NewSnapshot(), nil
	}

	snap := domain.NewSnapshot()
	for key, value := range raw {
		switch key {
		case keySource:
			_ = json.Unmarshal(value, &snap.Source)
		case keyLastRefresh:
			_ = json.Unmarshal(value, &snap.RefreshedAt)
		case keyRefreshEpoch:
			_ = json.Unmarshal(value, &snap.RefreshedAtEpoch)
		default:
			var rec quoteRecord
			if err := json.Unmarshal(value, &rec); err != nil || rec.Rate <= 0 {
				continue
			}
			pair, err := domain.ParsePairKey(key)
			if err != nil {
				continue
			}
			snap.Quotes[key] = domain.Quote{
				Pair:       pair,
				Rate:       decimal.NewFromFloat(rec.Rate),
				ObservedAt: rec.UpdatedAt,
			}
		}
	}
	return snap, nil
}

// Save replaces the snapshot file atomically. The new snapshot becomes
// visible to readers only after a complete write; a failed replace leaves the
// previous file intact.
func (s *Store) Save(snap *domain.Snapshot) error {
	doc := make(map[string]any, len(snap.Quotes)+3)
	for key, q := range snap.Quotes {
		doc[key] = quoteRecord{Rate: q.Rate.InexactFloat64(), UpdatedAt: q.ObservedAt}
	}
	doc[keySource] = snap.Source
	doc[keyLastRefresh] = snap.RefreshedAt
	doc[keyRefreshEpoch] = snap.RefreshedAtEpoch

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode rate cache")
	}
	return writeAtomic(s.path, payload)
}

// AppendHistory appends one record to the history file. History is
// append-only: existing entries are never rewritten or dropped.
func (s *Store) AppendHistory(rec domain.HistoryRecord) error {
	var history []historyRecord
	if payload, err := os.ReadFile(s.historyPath); err == nil {
		// a corrupt history file starts a fresh log rather than failing the run
		_ = json.Unmarshal(payload, &history)
	} else if !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "read rate history")
	}

	entry := historyRecord{
		Timestamp: rec.Timestamp,
		Source:    rec.Source,
		Pairs:     make(map[string]quoteRecord, len(rec.Pairs)),
	}
	for key, q := range rec.Pairs {
		entry.Pairs[key] = quoteRecord{Rate: q.Rate.InexactFloat64(), UpdatedAt: q.ObservedAt}
	}
	history = append(history, entry)

	payload, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode rate history")
	}
	return writeAtomic(s.historyPath, payload)
}

func writeAtomic(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create data dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "replace file")
	}
	return nil
}
