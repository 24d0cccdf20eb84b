package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"jobscout-engine/internal/domain"
	"jobscout-engine/internal/session"
	"jobscout-engine/internal/store"
)

func newAuth(t *testing.T) (*Service, *store.SQLite) {
	t.Helper()
	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	s := NewService(st, session.NewMemory(time.Hour), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.cost = bcrypt.MinCost
	return s, st
}

func TestSignupThenLogin(t *testing.T) {
	ctx := context.Background()
	s, st := newAuth(t)

	sess, err := s.Signup(ctx, " Ada@Example.com", "hunter22", "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "ada", sess.Identity.UserName)

	u, err := st.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", u.PasswordHash, "password must be hashed")

	id, ok, err := s.Identify(ctx, sess.Token)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, u.ID, id.UserID)

	again, err := s.Login(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, sess.Token, again.Token)

	require.NoError(t, s.Logout(ctx, again.Token))
	_, ok, _ = s.Identify(ctx, again.Token)
	assert.False(t, ok)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	s, _ := newAuth(t)
	_, err := s.Signup(ctx, "ada@example.com", "hunter22", "Ada")
	require.NoError(t, err)

	_, wrongPass := s.Login(ctx, "ada@example.com", "hunter23")
	_, noUser := s.Login(ctx, "bob@example.com", "hunter22")
	for _, err := range []error{wrongPass, noUser} {
		require.ErrorIs(t, err, domain.ErrAuth)
		assert.Equal(t, "Invalid email or password", err.Error())
	}
}

func TestSignupValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newAuth(t)

	tests := []struct {
		name, email, password string
	}{
		{"missing email", "", "hunter22"},
		{"missing password", "a@b.co", ""},
		{"bad email", "not-an-email", "hunter22"},
		{"short password", "a@b.co", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Signup(ctx, tt.email, tt.password, "")
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, err := s.Signup(ctx, "a@b.co", "hunter22", "")
	require.NoError(t, err)
	_, err = s.Signup(ctx, "A@B.co", "hunter22", "")
	assert.ErrorIs(t, err, domain.ErrConflict)
}
