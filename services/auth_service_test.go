package services

import (
	"testing"
	"time"

	"chat-relay/errors"
	"chat-relay/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

const testPassword = "Sup3r-Secret-Pass!"

func newAuthService(t *testing.T) IAuthService {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAuthService(repositories.NewUserRepository(db), time.Hour)
}

func TestRegisterThenLogin(t *testing.T) {
	req := require.New(t)
	service := newAuthService(t)

	registered, err := service.Register("alice", "alice@example.com", testPassword)
	req.NoError(err)
	req.NotEmpty(registered.Token)
	req.NotEmpty(registered.UserID)
	req.Equal("alice", registered.Username)

	logged, err := service.Login("alice@example.com", testPassword)
	req.NoError(err)
	req.Equal(registered.UserID, logged.UserID)

	// Both tokens resolve to the same identity.
	userID, err := service.Verify(logged.Token)
	req.NoError(err)
	req.Equal(registered.UserID, userID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	req := require.New(t)
	service := newAuthService(t)

	_, err := service.Register("alice", "alice@example.com", testPassword)
	req.NoError(err)

	_, err = service.Register("alicia", "alice@example.com", testPassword)
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestRegister_Validation(t *testing.T) {
	service := newAuthService(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short username", "al", "alice@example.com", testPassword},
		{"bad email", "alice", "not-an-email", testPassword},
		{"weak password", "alice", "alice@example.com", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(tt.username, tt.email, tt.password)
			require.ErrorIs(t, err, errors.ErrValidation)
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	req := require.New(t)
	service := newAuthService(t)

	_, err := service.Register("alice", "alice@example.com", testPassword)
	req.NoError(err)

	// Wrong password and unknown email fail identically.
	_, err = service.Login("alice@example.com", "Wrong-Password-123!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
	_, err = service.Login("nobody@example.com", testPassword)
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestVerify_GarbageToken(t *testing.T) {
	service := newAuthService(t)
	_, err := service.Verify("not.a.token")
	require.ErrorIs(t, err, errors.ErrUnauthenticated)
}
