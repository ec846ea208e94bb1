package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-do-not-use-in-production"

// ─── Round Trip ───

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("user-42", RoleTeacher, testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Errorf("Subject = %q, want user-42", claims.Subject)
	}
	if claims.Role != RoleTeacher {
		t.Errorf("Role = %q, want teacher", claims.Role)
	}
	if claims.ID == "" {
		t.Error("expected a token ID")
	}
}

// ─── Rejection ───

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("user-42", RoleAdmin, testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := ParseToken(token, "other-secret"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	// GenerateToken clamps non-positive TTLs, so sign an already-expired
	// token directly.
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			ID:        "expired-token",
		},
		Role: RoleAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	if _, err := ParseToken(token, testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestParseToken_Tampered(t *testing.T) {
	token, err := GenerateToken("user-42", RoleAdmin, testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]

	if _, err := ParseToken(tampered, testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for tampered token, got %v", err)
	}
}

func TestParseToken_Garbage(t *testing.T) {
	if _, err := ParseToken("not-a-jwt", testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}
