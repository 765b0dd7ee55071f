// Package users persists accounts and the single active session as JSON
// documents, written atomically like every other shared file.
package users

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/valutahub/valutahub/internal/domain"
)

// Store owns durability of the users file.
type Store struct {
	path string
}

// NewStore creates a user store over the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

type userRecord struct {
	UserID           int64  `json:"user_id"`
	Username         string `json:"username"`
	HashedPassword   string `json:"hashed_password"`
	Salt             string `json:"salt"`
	RegistrationDate string `json:"registration_date"`
}

// FindByUsername returns the user with the given username, or
// domain.ErrUserNotFound.
func (s *Store) FindByUsername(username string) (*domain.User, error) {
	records, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Username == username {
			u := recordToUser(rec)
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// NextID returns max existing user id + 1.
func (s *Store) NextID() (int64, error) {
	records, err := s.readAll()
	if err != nil {
		return 0, err
	}
	var max int64
	for _, rec := range records {
		if rec.UserID > max {
			max = rec.UserID
		}
	}
	return max + 1, nil
}

// Append adds a new user and rewrites the document atomically.
func (s *Store) Append(u domain.User) error {
	records, err := s.readAll()
	if err != nil {
		return err
	}
	records = append(records, userRecord{
		UserID:           u.ID,
		Username:         u.Username,
		HashedPassword:   u.HashedPassword,
		Salt:             u.Salt,
		RegistrationDate: u.RegistrationDate,
	})
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode users")
	}
	return writeAtomic(s.path, payload)
}

func (s *Store) readAll() ([]userRecord, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read users")
	}
	var records []userRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}
	return records, nil
}

func recordToUser(rec userRecord) domain.User {
	return domain.User{
		ID:               rec.UserID,
		Username:         rec.Username,
		HashedPassword:   rec.HashedPassword,
		Salt:             rec.Salt,
		RegistrationDate: rec.RegistrationDate,
	}
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
