package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	token, err := svc.Issue(7, "PATIENT")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.SubjectID != 7 || claims.Role != "PATIENT" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	token, _ := NewTokenService("secret", time.Hour).Issue(7, "PATIENT")

	_, err := NewTokenService("other", time.Hour).Validate(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenService_RejectsExpired(t *testing.T) {
	svc := NewTokenService("secret", time.Minute)
	issuedAt := time.Date(2030, time.January, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }
	token, _ := svc.Issue(3, "STAFF")

	svc.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenService_RejectsUnsigned(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SubjectID: 1, Role: "ADMIN"})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewTokenService("secret", time.Hour).Validate(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenService_RejectsMissingSubject(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	token, _ := svc.Issue(0, "ADMIN")

	if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
