// Package auth handles signup and login with bcrypt-verified credentials and
// hands out session tokens.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"jobscout-engine/internal/domain"
	"jobscout-engine/internal/session"
	"jobscout-engine/internal/store"
)

const (
	MinPasswordLen = 6
	// bcrypt ignores everything past 72 bytes
	maxPasswordLen = 72

	msgBadCredentials = "Invalid email or password"
)

type Service struct {
	users    store.UserStore
	sessions session.Store
	log      *slog.Logger

	cost  int
	now   func() time.Time
	newID func() string
}

func NewService(users store.UserStore, sessions session.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		log:      log,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type Session struct {
	Token    string
	Identity session.Identity
}

// Signup creates the user and logs them in.
func (s *Service) Signup(ctx context.Context, email, password, name string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || password == "" {
		return Session{}, domain.Invalid("email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, domain.Invalid("invalid email address")
	}
	if len(password) < MinPasswordLen {
		return Session{}, domain.Invalid("password must be at least 6 characters")
	}
	if len(password) > maxPasswordLen {
		return Session{}, domain.Invalid("password must be at most 72 bytes")
	}
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, err
	}
	u := domain.User{
		ID:           s.newID(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return Session{}, err
	}
	s.log.Info("user signed up", "user_id", u.ID)
	return s.open(ctx, u)
}

// Login verifies the password against the stored hash. Unknown email and
// wrong password fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Session{}, domain.Invalid("email and password are required")
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, domain.Unauthorized(msgBadCredentials)
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.Info("login rejected", "user_id", u.ID)
		return Session{}, domain.Unauthorized(msgBadCredentials)
	}
	return s.open(ctx, u)
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// Identify resolves a token; ok is false for absent, unknown or expired ones.
func (s *Service) Identify(ctx context.Context, token string) (session.Identity, bool, error) {
	if token == "" {
		return session.Identity{}, false, nil
	}
	return s.sessions.Lookup(ctx, token)
}

func (s *Service) open(ctx context.Context, u domain.User) (Session, error) {
	id := session.Identity{UserID: u.ID, UserName: u.Name}
	tok, err := s.sessions.Create(ctx, id)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: tok, Identity: id}, nil
}
