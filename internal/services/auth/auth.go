// Package auth registers accounts and manages the single active login.
// Passwords are stored as PBKDF2-SHA256 digests with a per-user random salt.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"github.com/valutahub/valutahub/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltBytes       = 16
	pbkdf2Iters     = 100_000
	pbkdf2KeyLen    = 32
	minPasswordRune = 4
)

var (
	ErrEmptyUsername    = errors.New("username must not be empty")
	ErrPasswordTooShort = errors.New("password must be at least 4 characters")
)

// UserStore is the durable account storage the service works against.
type UserStore interface {
	FindByUsername(username string) (*domain.User, error)
	NextID() (int64, error)
	Append(u domain.User) error
}

// SessionStore persists the active login between process runs.
type SessionStore interface {
	Load() (*domain.Session, error)
	Save(sess domain.Session) error
	Clear() error
}

// PortfolioStore is used to create the empty portfolio of a new account.
type PortfolioStore interface {
	Save(p *domain.Portfolio) error
}

// Service implements register, login, logout and current-user lookup.
type Service struct {
	users      UserStore
	sessions   SessionStore
	portfolios PortfolioStore
	logger     *zap.Logger
}

// NewService creates the auth service.
func NewService(users UserStore, sessions SessionStore, portfolios PortfolioStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, sessions: sessions, portfolios: portfolios, logger: logger}
}

// Register creates a new account with a unique username and an empty
// portfolio. The account id is one past the current maximum.
func (s *Service) Register(username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if len([]rune(password)) < minPasswordRune {
		return nil, ErrPasswordTooShort
	}

	if _, err := s.users.FindByUsername(username); err == nil {
		return nil, domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	salt, err := newSalt()
	if err != nil {
		return nil, err
	}
	id, err := s.users.NextID()
	if err != nil {
		return nil, err
	}

	user := domain.User{
		ID:               id,
		Username:         username,
		HashedPassword:   hashPassword(password, salt),
		Salt:             salt,
		RegistrationDate: domain.UTCNow(),
	}
	if err := s.users.Append(user); err != nil {
		return nil, err
	}
	if err := s.portfolios.Save(domain.NewPortfolio(user.ID)); err != nil {
		return nil, errors.Wrap(err, "create empty portfolio")
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username))
	return &user, nil
}

// Login verifies the password and makes the user the active session,
// replacing any previous one.
func (s *Service) Login(username, password string) (*domain.Session, error) {
	user, err := s.users.FindByUsername(strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if !verifyPassword(password, user.Salt, user.HashedPassword) {
		return nil, domain.ErrWrongPassword
	}

	sess := domain.Session{UserID: user.ID, Username: user.Username}
	if err := s.sessions.Save(sess); err != nil {
		return nil, errors.Wrap(err, "persist session")
	}

	s.logger.Info("user logged in", zap.String("username", user.Username))
	return &sess, nil
}

// Logout clears the active session. Logging out while not logged in is fine.
func (s *Service) Logout() error {
	return s.sessions.Clear()
}

// CurrentUser returns the active session or domain.ErrNotLoggedIn.
func (s *Service) CurrentUser() (*domain.Session, error) {
	return s.sessions.Load()
}

func newSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate salt")
	}
	return hex.EncodeToString(buf), nil
}

func hashPassword(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iters, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(key)
}

func verifyPassword(password, salt, hashed string) bool {
	return hmac.Equal([]byte(hashPassword(password, salt)), []byte(hashed))
}
