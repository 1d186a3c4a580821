package services

import (
	"chatwire/auth"
	"chatwire/domain"
	"chatwire/errors"
	"chatwire/repositories"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeUserRepo records calls so tests can assert the service never
// touches storage when validation fails upstream.
type fakeUserRepo struct {
	createCalls int
	createErr   error
	lastHash    string
	user        repositories.User
	userErr     error
}

func (f *fakeUserRepo) CreateUser(displayName, email, hashedPassword string) (string, error) {
	f.createCalls++
	f.lastHash = hashedPassword
	if f.createErr != nil {
		return "", f.createErr
	}
	return "user-uuid", nil
}

func (f *fakeUserRepo) GetUserByEmail(email string) (repositories.User, error) {
	if f.userErr != nil {
		return repositories.User{}, f.userErr
	}
	return f.user, nil
}

func (f *fakeUserRepo) GetIdentity(id string) (domain.Identity, error) {
	return domain.Identity{}, errors.ErrNotFound
}

func (f *fakeUserRepo) ListIdentities() ([]domain.Identity, error) { return nil, nil }

func (f *fakeUserRepo) UpdateAvatar(id, avatarRef string) error { return nil }

func TestAuthService_Register(t *testing.T) {
	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		repo := &fakeUserRepo{}
		svc := NewAuthService(repo, 24*time.Hour)

		token, err := svc.Register("Test User", "test@example.com", "ComplexPass123!")

		req.NoError(err)
		req.NotEmpty(token)
		req.Equal(1, repo.createCalls)
		// The repository must receive a hash, never the plain password
		req.NotEqual("ComplexPass123!", repo.lastHash)
		req.Contains(repo.lastHash, "$argon2id$")
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		repo := &fakeUserRepo{}
		svc := NewAuthService(repo, 24*time.Hour)

		token, err := svc.Register("Test User", "test@example.com", "simple")

		req.Error(err)
		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
		req.Zero(repo.createCalls) // Storage is never reached
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)
		repo := &fakeUserRepo{createErr: errors.ErrUserAlreadyExists}
		svc := NewAuthService(repo, 24*time.Hour)

		_, err := svc.Register("Test User", "duplicate@example.com", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		password := "Secret123456!"
		hashedPassword, _ := auth.HashPassword(password)
		repo := &fakeUserRepo{user: repositories.User{
			ID:           "uuid-123",
			Email:        "user@example.com",
			PasswordHash: hashedPassword,
			Roles:        []string{"user"},
		}}
		svc := NewAuthService(repo, 24*time.Hour)

		token, err := svc.Login("user@example.com", password)

		req.NoError(err)
		req.NotEmpty(token)

		// Optional: validate token claims
		claims, err := auth.ValidateToken(string(token))
		req.NoError(err)
		req.Equal("uuid-123", claims.UserID)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		hashedPassword, _ := auth.HashPassword("CorrectPassword123!")
		repo := &fakeUserRepo{user: repositories.User{
			Email:        "user@example.com",
			PasswordHash: hashedPassword,
		}}
		svc := NewAuthService(repo, 24*time.Hour)

		_, err := svc.Login("user@example.com", "WrongPassword123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)
		repo := &fakeUserRepo{userErr: fmt.Errorf("Key not found")}
		svc := NewAuthService(repo, 24*time.Hour)

		_, err := svc.Login("unknown@example.com", "anyPassword")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
