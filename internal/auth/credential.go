// Package auth maintains the bearer credential for the ledger service:
// initial login, proactive refresh before expiry, and forced refresh after an
// authentication rejection. The credential is shared by every delivery
// worker and swapped atomically, never mutated in place.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is one immutable bearer credential. Replaced wholesale on
// refresh; readers observe either the old or the new value, never a mix.
type Credential struct {
	Token     string
	ExpiresAt time.Time
	SubjectID string
	Email     string
}

// ExpiresWithin reports whether the credential expires inside the window (or
// already has). A credential without a parsed expiry never reports true; it
// is refreshed only reactively, on a 401.
func (c *Credential) ExpiresWithin(window time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(window).After(c.ExpiresAt)
}

type ledgerClaims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// newCredential builds a Credential from a raw token, extracting expiry and
// subject from the JWT claims. The signature is not verified — the token
// came straight from the service over TLS and is only parsed for its expiry;
// the service re-validates it on every request anyway. Non-JWT tokens yield
// a credential without expiry.
func newCredential(token, fallbackID, fallbackEmail string) *Credential {
	cred := &Credential{Token: token, SubjectID: fallbackID, Email: fallbackEmail}

	var claims ledgerClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return cred
	}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.ID != "" {
		cred.SubjectID = claims.ID
	}
	if claims.Email != "" {
		cred.Email = claims.Email
	}
	return cred
}
