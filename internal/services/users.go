package services

import (
	"context"
	"errors"
	"strings"

	"github.com/menucraft/apiserver/internal/auth"
	"github.com/menucraft/apiserver/internal/store"
	"github.com/menucraft/apiserver/types"
)

const (
	defaultUserRole     = "user"
	providerCredentials = "credentials"
	providerGoogle      = "google"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Upsert(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates registration, credential login, and OAuth
// identity reconciliation.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates a credentials account. The email unique index is the
// authoritative duplicate check: a conflicting insert surfaces as
// store.ErrDuplicateEmail with no read-then-write race.
func (s *UserService) Register(ctx context.Context, name, email, password string) (types.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return types.User{}, invalid("name, email, and password are required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Name:         name,
		Email:        email,
		Role:         defaultUserRole,
		Provider:     providerCredentials,
		PasswordHash: hash,
	})
}

// Login verifies credentials against the stored hash. Unknown emails and
// wrong passwords fail identically; OAuth-only accounts (empty hash) fall
// through the same path.
func (s *UserService) Login(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// OAuthSync finds or creates the account for an externally-authenticated
// user in one atomic upsert keyed by normalized email. Re-syncs refresh
// name, provider, role, and updated_at; created_at and any stored password
// hash survive.
func (s *UserService) OAuthSync(ctx context.Context, email, name, provider string) (types.User, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" {
		return types.User{}, invalid("email and name are required")
	}

	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		provider = providerGoogle
	}

	return s.repo.Upsert(ctx, types.User{
		Name:     name,
		Email:    email,
		Role:     defaultUserRole,
		Provider: provider,
	})
}

// NormalizeEmail lowercases and trims an address. Emails are stored and
// compared in this form everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
