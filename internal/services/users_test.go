package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/menucraft/apiserver/internal/auth"
	"github.com/menucraft/apiserver/internal/store"
	"github.com/menucraft/apiserver/types"
)

// fakeUserRepo mimics the Postgres repository, including the unique-email
// conflict and the upsert's created_at preservation.
type fakeUserRepo struct {
	nextID  int
	byEmail map[string]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]types.User)}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	for _, user := range f.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	if _, ok := f.byEmail[user.Email]; ok {
		return types.User{}, store.ErrDuplicateEmail
	}
	f.nextID++
	user.ID = f.nextID
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.byEmail[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) Upsert(_ context.Context, user types.User) (types.User, error) {
	now := time.Now()
	if existing, ok := f.byEmail[user.Email]; ok {
		existing.Name = user.Name
		existing.Provider = user.Provider
		existing.Role = user.Role
		existing.UpdatedAt = now
		f.byEmail[user.Email] = existing
		return existing, nil
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	f.byEmail[user.Email] = user
	return user, nil
}

func TestRegister(t *testing.T) {
	service := NewUserService(newFakeUserRepo())

	user, err := service.Register(context.Background(), "Alice", "Alice@Example.COM", "hunter22")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if user.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.Role != "user" || user.Provider != "credentials" {
		t.Fatalf("unexpected role/provider: %q/%q", user.Role, user.Provider)
	}
	if user.PasswordHash == "" || user.PasswordHash == "hunter22" {
		t.Fatalf("password must be stored hashed")
	}
	if !auth.CheckPassword("hunter22", user.PasswordHash) {
		t.Fatalf("stored hash does not verify the password")
	}
}

func TestRegisterMissingFields(t *testing.T) {
	service := NewUserService(newFakeUserRepo())

	cases := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{"missing name", "", "a@example.com", "pw"},
		{"missing email", "Alice", "", "pw"},
		{"missing password", "Alice", "a@example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Register(context.Background(), tc.userName, tc.email, tc.password)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service := NewUserService(newFakeUserRepo())

	if _, err := service.Register(context.Background(), "Alice", "alice@example.com", "pw1"); err != nil {
		t.Fatalf("first register: %v", err)
	}

	// Same address in a different case must still conflict.
	_, err := service.Register(context.Background(), "Mallory", "ALICE@example.com", "pw2")
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	service := NewUserService(newFakeUserRepo())

	registered, err := service.Register(context.Background(), "Alice", "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	user, err := service.Login(context.Background(), "ALICE@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("logged in as id %d, want %d", user.ID, registered.ID)
	}
}

func TestLoginFailsUniformly(t *testing.T) {
	service := NewUserService(newFakeUserRepo())

	if _, err := service.Register(context.Background(), "Alice", "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Wrong password and unknown account must be indistinguishable.
	_, wrongPassErr := service.Login(context.Background(), "alice@example.com", "wrong")
	_, noUserErr := service.Login(context.Background(), "nobody@example.com", "hunter22")

	if !errors.Is(wrongPassErr, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", wrongPassErr)
	}
	if !errors.Is(noUserErr, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v", noUserErr)
	}
	if wrongPassErr.Error() != noUserErr.Error() {
		t.Fatalf("failure messages differ: %q vs %q", wrongPassErr, noUserErr)
	}
}

func TestLoginOAuthOnlyAccount(t *testing.T) {
	service := NewUserService(newFakeUserRepo())

	if _, err := service.OAuthSync(context.Background(), "sso@example.com", "SSO User", "google"); err != nil {
		t.Fatalf("OAuthSync: %v", err)
	}

	_, err := service.Login(context.Background(), "sso@example.com", "anything")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for oauth-only account, got %v", err)
	}
}

func TestOAuthSyncIdempotent(t *testing.T) {
	service := NewUserService(newFakeUserRepo())

	first, err := service.OAuthSync(context.Background(), "Sso@Example.com", "First Name", "google")
	if err != nil {
		t.Fatalf("first OAuthSync: %v", err)
	}

	second, err := service.OAuthSync(context.Background(), "sso@example.com", "Renamed", "google")
	if err != nil {
		t.Fatalf("second OAuthSync: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("resynced user id = %d, want %d", second.ID, first.ID)
	}
	if second.Name != "Renamed" {
		t.Fatalf("name not refreshed: %q", second.Name)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at must survive resync")
	}
}

func TestOAuthSyncValidation(t *testing.T) {
	service := NewUserService(newFakeUserRepo())

	for _, tc := range []struct{ email, name string }{
		{"", "Named"},
		{"a@example.com", ""},
	} {
		_, err := service.OAuthSync(context.Background(), tc.email, tc.name, "google")
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("email=%q name=%q: expected validation error, got %v", tc.email, tc.name, err)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Mixed.Case@Example.COM "); got != "mixed.case@example.com" {
		t.Fatalf("NormalizeEmail = %q", got)
	}
	if !strings.EqualFold(NormalizeEmail("a@b.c"), "a@b.c") {
		t.Fatalf("NormalizeEmail changed content")
	}
}
