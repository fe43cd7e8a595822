package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/farisgozi/attendify/internal/errs"
)

func TestSignUpValidation(t *testing.T) {
	t.Parallel()
	s := NewUserService(nil, "secret")

	tests := []struct {
		name     string
		email    string
		password string
		confirm  string
	}{
		{"empty email", "", "password1", "password1"},
		{"email without at sign", "not-an-email", "password1", "password1"},
		{"short password", "a@b.com", "12345", "12345"},
		{"confirmation mismatch", "a@b.com", "password1", "password2"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := s.SignUp(context.Background(), tt.email, tt.password, tt.confirm)
			if !errors.Is(err, errs.ErrValidation) {
				t.Errorf("SignUp: got %v, want ErrValidation", err)
			}
		})
	}
}

func TestJWTRoundTrip(t *testing.T) {
	t.Parallel()
	s := NewUserService(nil, "secret")

	token, err := s.generateJWT("user-123", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("generateJWT: %v", err)
	}

	userID, err := s.ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("user id: got %q, want user-123", userID)
	}
}

func TestValidateJWTRejectsExpiredToken(t *testing.T) {
	t.Parallel()
	s := NewUserService(nil, "secret")

	token, err := s.generateJWT("user-123", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("generateJWT: %v", err)
	}

	_, err = s.ValidateJWT(token)
	if !errors.Is(err, errs.ErrAuthRequired) {
		t.Errorf("ValidateJWT: got %v, want ErrAuthRequired", err)
	}
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	t.Parallel()
	issuer := NewUserService(nil, "secret-a")
	verifier := NewUserService(nil, "secret-b")

	token, err := issuer.generateJWT("user-123", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("generateJWT: %v", err)
	}

	_, err = verifier.ValidateJWT(token)
	if !errors.Is(err, errs.ErrAuthRequired) {
		t.Errorf("ValidateJWT: got %v, want ErrAuthRequired", err)
	}
}

func TestValidateJWTRejectsGarbage(t *testing.T) {
	t.Parallel()
	s := NewUserService(nil, "secret")

	_, err := s.ValidateJWT("not.a.token")
	if !errors.Is(err, errs.ErrAuthRequired) {
		t.Errorf("ValidateJWT: got %v, want ErrAuthRequired", err)
	}
}
