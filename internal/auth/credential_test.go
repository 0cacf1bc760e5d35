package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, id, email string, expiresAt time.Time) string {
	t.Helper()
	claims := ledgerClaims{
		ID:    id,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestNewCredentialParsesClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, "u1", "me@example.com", exp)

	cred := newCredential(tok, "fallback-id", "fallback@example.com")
	if cred.Token != tok {
		t.Error("token not preserved")
	}
	if cred.SubjectID != "u1" || cred.Email != "me@example.com" {
		t.Errorf("subject = %q / %q, want claims values", cred.SubjectID, cred.Email)
	}
	if !cred.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", cred.ExpiresAt, exp)
	}
}

func TestNewCredentialOpaqueToken(t *testing.T) {
	cred := newCredential("not-a-jwt", "u1", "me@example.com")
	if cred.Token != "not-a-jwt" {
		t.Error("token not preserved")
	}
	if cred.SubjectID != "u1" || cred.Email != "me@example.com" {
		t.Error("fallback identity not used")
	}
	if !cred.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero for opaque token", cred.ExpiresAt)
	}
}

func TestExpiresWithin(t *testing.T) {
	tests := []struct {
		name   string
		expiry time.Time
		window time.Duration
		want   bool
	}{
		{"far future", time.Now().Add(24 * time.Hour), 30 * time.Minute, false},
		{"inside window", time.Now().Add(10 * time.Minute), 30 * time.Minute, true},
		{"already expired", time.Now().Add(-time.Minute), 30 * time.Minute, true},
		{"no expiry", time.Time{}, 30 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Credential{ExpiresAt: tt.expiry}
			if got := c.ExpiresWithin(tt.window); got != tt.want {
				t.Errorf("ExpiresWithin = %v, want %v", got, tt.want)
			}
		})
	}
}
