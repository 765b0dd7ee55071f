package users

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/valutahub/valutahub/internal/domain"
)

// SessionStore persists the single active session. Each login overwrites the
// previous session wholesale.
type SessionStore struct {
	path string
}

// NewSessionStore creates a session store over the given file path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

type sessionRecord struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Load returns the active session, or domain.ErrNotLoggedIn if no valid
// session file exists.
func (s *SessionStore) Load() (*domain.Session, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotLoggedIn
		}
		return nil, errors.Wrap(err, "read session")
	}
	var rec sessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil || rec.UserID == 0 || rec.Username == "" {
		return nil, domain.ErrNotLoggedIn
	}
	return &domain.Session{UserID: rec.UserID, Username: rec.Username}, nil
}

// Save replaces the session file atomically.
func (s *SessionStore) Save(sess domain.Session) error {
	payload, err := json.MarshalIndent(sessionRecord{UserID: sess.UserID, Username: sess.Username}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	return writeAtomic(s.path, payload)
}

// Clear removes the session file; a missing file is not an error.
func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove session")
	}
	return nil
}
