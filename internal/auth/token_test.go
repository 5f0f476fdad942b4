// ABOUTME: Unit tests for token signing, verification and unverified inspection
// ABOUTME: Tests valid tokens, invalid tokens, and expired tokens

package auth

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("test-secret-key-for-jwt-signing")

func TestIssuer_ValidToken(t *testing.T) {
	issuer := NewIssuer(testSecret)

	token, err := issuer.Generate("alice", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != "alice" {
		t.Errorf("Verify() = %q, want %q", got, "alice")
	}
}

func TestIssuer_InvalidToken(t *testing.T) {
	issuer := NewIssuer(testSecret)

	otherToken, err := NewIssuer([]byte("different-secret")).Generate("alice", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not-a-jwt-token"},
		{name: "malformed JWT", token: "header.payload.signature"},
		{name: "wrong secret", token: otherToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestIssuer_ExpiredToken(t *testing.T) {
	issuer := NewIssuer(testSecret)

	token, err := issuer.Generate("alice", -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = issuer.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestIssuer_DifferentSubjects(t *testing.T) {
	issuer := NewIssuer(testSecret)

	for _, subject := range []string{"alice", "bob", "carol"} {
		token, err := issuer.Generate(subject, time.Hour)
		if err != nil {
			t.Fatalf("Generate(%q) error = %v", subject, err)
		}
		got, err := issuer.Verify(token)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if got != subject {
			t.Errorf("Verify() = %q, want %q", got, subject)
		}
	}
}

func TestInspect(t *testing.T) {
	issuer := NewIssuer(testSecret)
	before := time.Now().Add(-time.Second)

	token, err := issuer.Generate("alice", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := Inspect(token)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "alice")
	}
	if claims.IssuedAt.Before(before.Truncate(time.Second)) {
		t.Errorf("IssuedAt = %v, want after %v", claims.IssuedAt, before)
	}
	if claims.Expired(time.Now()) {
		t.Error("Expired() = true for a fresh token")
	}
	if !claims.Expired(time.Now().Add(2 * time.Hour)) {
		t.Error("Expired() = false two hours later")
	}
}

func TestInspect_ExpiredTokenStillDecodes(t *testing.T) {
	token, err := NewIssuer(testSecret).Generate("alice", -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := Inspect(token)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if !claims.Expired(time.Now()) {
		t.Error("Expired() = false, want true")
	}
}

func TestInspect_Garbage(t *testing.T) {
	if _, err := Inspect("not-a-jwt-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Inspect() error = %v, want ErrInvalidToken", err)
	}
}

func TestClaims_NoExpiry(t *testing.T) {
	c := &Claims{Subject: "alice"}
	if c.Expired(time.Now().Add(100 * 365 * 24 * time.Hour)) {
		t.Error("Expired() = true for a token without exp")
	}
}
