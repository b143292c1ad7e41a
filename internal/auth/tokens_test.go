package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokens_RoundTrip(t *testing.T) {
	tok := NewTokens("secret", 72*time.Hour)

	signed, err := tok.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	sub, err := tok.Validate(signed)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if sub != "user-123" {
		t.Errorf("expected subject 'user-123', got %s", sub)
	}
}

func TestTokens_Issue_EmptySubject(t *testing.T) {
	tok := NewTokens("secret", time.Hour)

	if _, err := tok.Issue(""); err == nil {
		t.Error("expected error for empty subject")
	}
}

func TestTokens_Validate_Expired(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := NewTokens("secret", time.Hour)
	tok.now = fixedClock(issuedAt)

	signed, err := tok.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tok.now = fixedClock(issuedAt.Add(59 * time.Minute))
	if _, err := tok.Validate(signed); err != nil {
		t.Fatalf("expected token valid before expiry, got %v", err)
	}

	tok.now = fixedClock(issuedAt.Add(2 * time.Hour))
	if _, err := tok.Validate(signed); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated after expiry, got %v", err)
	}
}

func TestTokens_Validate_Rejects(t *testing.T) {
	tok := NewTokens("secret", time.Hour)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	sign := func(method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("signing failed: %v", err)
		}
		return s
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{Subject: "u", ExpiresAt: future})},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, []byte("secret"), jwt.RegisteredClaims{Subject: "u", ExpiresAt: future})},
		{"none algorithm", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.RegisteredClaims{Subject: "u", ExpiresAt: future})},
		{"no expiry", sign(jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{Subject: "u"})},
		{"no subject", sign(jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{ExpiresAt: future})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := tok.Validate(tt.token)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("expected ErrUnauthenticated, got %v", err)
			}
			if sub != "" {
				t.Errorf("expected empty subject, got %s", sub)
			}
		})
	}
}
