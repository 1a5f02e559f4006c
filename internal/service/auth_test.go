package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/msomdec/merchtrax/internal/domain"
	"github.com/msomdec/merchtrax/internal/repository/sqlite"
	"github.com/msomdec/merchtrax/internal/service"
)

const testJWTSecret = "test-secret-key-for-unit-tests-0123456789"

func newTestAuthService(t *testing.T) *service.AuthService {
	t.Helper()
	// Cost 4 keeps the tests fast.
	return service.NewAuthService(sqlite.NewUserRepository(newTestDB(t)), testJWTSecret, 4)
}

func TestAuthService_Register_Success(t *testing.T) {
	auth := newTestAuthService(t)

	user, err := auth.Register(context.Background(), " new@example.com ", "New User", "password123", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected user ID to be set")
	}
	if user.Email != "new@example.com" {
		t.Fatalf("expected trimmed email, got %q", user.Email)
	}
	if user.PasswordHash == "password123" {
		t.Fatal("password must be hashed")
	}
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	auth := newTestAuthService(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, "dup@example.com", "User 1", "password123", "password123"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := auth.Register(ctx, "dup@example.com", "User 2", "password456", "password456")
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestAuthService_Register_InvalidInput(t *testing.T) {
	auth := newTestAuthService(t)

	tests := []struct {
		name     string
		email    string
		display  string
		password string
		confirm  string
	}{
		{"empty email", "", "Name", "password123", "password123"},
		{"empty display name", "a@b.com", " ", "password123", "password123"},
		{"empty password", "a@b.com", "Name", "", ""},
		{"malformed email", "not-an-email", "Name", "password123", "password123"},
		{"short password", "a@b.com", "Name", "short", "short"},
		{"mismatch", "a@b.com", "Name", "password123", "different456"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := auth.Register(context.Background(), tc.email, tc.display, tc.password, tc.confirm)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestAuthService_LoginAndValidate(t *testing.T) {
	auth := newTestAuthService(t)
	ctx := context.Background()

	registered, err := auth.Register(ctx, "login@example.com", "Login User", "password123", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, user, err := auth.Login(ctx, "LOGIN@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" || user.ID != registered.ID {
		t.Fatalf("unexpected login result token=%q user=%+v", token, user)
	}

	userID, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if userID != registered.ID {
		t.Fatalf("expected user ID %d, got %d", registered.ID, userID)
	}
}

func TestAuthService_Login_Rejected(t *testing.T) {
	auth := newTestAuthService(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, "wrongpw@example.com", "User", "password123", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := auth.Login(ctx, "wrongpw@example.com", "wrongpassword"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("wrong password: expected ErrUnauthorized, got %v", err)
	}
	if _, _, err := auth.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("unknown email: expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_ValidateToken_Rejects(t *testing.T) {
	auth := newTestAuthService(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, "tamper@example.com", "Tamper", "password123", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, _, err := auth.Login(ctx, "tamper@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := auth.ValidateToken("not-a-valid-jwt"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("garbage: expected ErrUnauthorized, got %v", err)
	}
	if _, err := auth.ValidateToken(token[:len(token)-5] + "XXXXX"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("tampered: expected ErrUnauthorized, got %v", err)
	}

	other := service.NewAuthService(sqlite.NewUserRepository(newTestDB(t)), "a-completely-different-secret-value!!", 4)
	if _, err := other.ValidateToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("wrong secret: expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_ValidateToken_Expired(t *testing.T) {
	auth := newTestAuthService(t)
	ctx := context.Background()

	issued := time.Now()
	service.SetAuthNow(auth, func() time.Time { return issued })
	if _, err := auth.Register(ctx, "old@example.com", "Old", "password123", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, _, err := auth.Login(ctx, "old@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	service.SetAuthNow(auth, func() time.Time { return issued.Add(service.TokenTTL + time.Minute) })
	if _, err := auth.ValidateToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}
