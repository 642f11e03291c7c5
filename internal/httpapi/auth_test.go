package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"warungpos/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	stub := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	auth := NewAuthManager("test-secret-key", time.Hour, stub)

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != "admin" {
		t.Fatalf("expected admin role, got %s", resp.Role)
	}

	stub.mu.Lock()
	stored := stub.users["admin"].Password
	updates := stub.updates
	stub.mu.Unlock()
	if !strings.HasPrefix(stored, "$2") {
		t.Fatalf("expected stored password upgraded to bcrypt, got %q", stored)
	}
	if updates == 0 {
		t.Fatalf("expected store password update")
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, nil)

	token, err := auth.sign("admin", "admin", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	issuer := NewAuthManager("secret-one", time.Hour, nil)
	verifier := NewAuthManager("secret-two", time.Hour, nil)

	token, err := issuer.sign("admin", "admin", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatalf("expected token from foreign secret to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, nil)

	token, err := auth.sign("admin", "admin", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestSignupValidatesInput(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, &userStoreStub{})
	ctx := context.Background()

	if _, err := auth.Signup(ctx, domain.SignupRequest{Username: "ab", Password: "rahasia1"}); err == nil {
		t.Fatalf("expected short username to be rejected")
	}
	if _, err := auth.Signup(ctx, domain.SignupRequest{Username: "kasirbaru", Password: "123"}); err == nil {
		t.Fatalf("expected short password to be rejected")
	}

	resp, err := auth.Signup(ctx, domain.SignupRequest{Username: "KasirBaru", Password: "rahasia1"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if resp.Username != "kasirbaru" {
		t.Fatalf("expected lowercased username, got %s", resp.Username)
	}
	if _, err := auth.Signup(ctx, domain.SignupRequest{Username: "kasirbaru", Password: "rahasia1"}); err == nil {
		t.Fatalf("expected duplicate username to be rejected")
	}
}
