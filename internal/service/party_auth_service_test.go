package service

import (
	"errors"
	"testing"

	"github.com/rentflow/internal/constants"
)

func TestPartyLoginIssuesParsableToken(t *testing.T) {
	f := setupRentflowServiceTest(t, true)
	party, err := f.auth.Register(RegisterPartyInput{
		Email:       "Login@Example.com",
		Password:    "correct-horse",
		DisplayName: "Lena Landlord",
		Role:        constants.PartyRoleLandlord,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, _, _, err := f.auth.Login("login@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	logged, token, expiresAt, err := f.auth.Login("login@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if logged.ID != party.ID || token == "" || expiresAt.IsZero() {
		t.Fatalf("unexpected login result")
	}
	claims, err := f.auth.ParsePartyJWT(token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.PartyID != party.ID || claims.Role != constants.PartyRoleLandlord {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := f.auth.ParsePartyJWT(token + "x"); err == nil {
		t.Fatalf("tampered token should be rejected")
	}
}

func TestPartyRegisterRejectsUnknownRole(t *testing.T) {
	f := setupRentflowServiceTest(t, true)
	if _, err := f.auth.Register(RegisterPartyInput{Email: "x@example.com", Password: "long-enough", Role: "owner"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
