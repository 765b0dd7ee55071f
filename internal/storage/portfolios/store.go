// Package portfolios persists per-user portfolios in a single JSON document.
// A buy or sell mutates two wallets but results in exactly one file replace,
// so an external reader sees either the pre-trade or the post-trade state.
package portfolios

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutahub/valutahub/internal/domain"
)

// Store owns durability of every user's wallets.
type Store struct {
	path string
}

// NewStore creates a portfolio store over the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

type walletRecord struct {
	Balance float64 `json:"balance"`
}

type portfolioRecord struct {
	UserID  int64                   `json:"user_id"`
	Wallets map[string]walletRecord `json:"wallets"`
}

// Load returns the portfolio of the given user. A user without a stored entry
// gets an empty portfolio.
func (s *Store) Load(userID int64) (*domain.Portfolio, error) {
	records, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.UserID == userID {
			p := domain.NewPortfolio(userID)
			for code, w := range rec.Wallets {
				p.Wallets[code] = &domain.Wallet{Code: code, Balance: decimal.NewFromFloat(w.Balance)}
			}
			return p, nil
		}
	}
	return domain.NewPortfolio(userID), nil
}

// Save upserts the portfolio and rewrites the whole document atomically.
func (s *Store) Save(p *domain.Portfolio) error {
	records, err := s.readAll()
	if err != nil {
		return err
	}

	entry := portfolioRecord{UserID: p.UserID, Wallets: make(map[string]walletRecord, len(p.Wallets))}
	for code, w := range p.Wallets {
		entry.Wallets[code] = walletRecord{Balance: w.Balance.InexactFloat64()}
	}

	updated := false
	for i, rec := range records {
		if rec.UserID == p.UserID {
			records[i] = entry
			updated = true
			break
		}
	}
	if !updated {
		records = append(records, entry)
	}

	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode portfolios")
	}
	return writeAtomic(s.path, payload)
}

func (s *Store) readAll() ([]portfolioRecord, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read portfolios")
	}
	var records []portfolioRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, errors.Wrap(err, "decode portfolios")
	}
	return records, nil
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
