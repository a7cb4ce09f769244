// Package session holds the credentials the withdrawal flow requires.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/offramp/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Session is the authenticated account. Tokens are obtained elsewhere; this
// package only decides whether they are usable.
type Session struct {
	AccessToken string
	PublicKey   string
}

// Provider returns the current session.
type Provider interface {
	Current() Session
}

// Static is a Provider that always returns the same session.
type Static Session

// Current implements Provider.
func (s Static) Current() Session {
	return Session(s)
}

// Validate reports ErrInvalidSession when the token or public key is blank,
// or when the token is a JWT whose exp claim is not after now. Opaque
// tokens are accepted as-is; the backend remains the authority on them.
func (s Session) Validate(now time.Time) error {
	if strings.TrimSpace(s.AccessToken) == "" {
		return fmt.Errorf("%w: access token is empty", common.ErrInvalidSession)
	}
	if strings.TrimSpace(s.PublicKey) == "" {
		return fmt.Errorf("%w: public key is empty", common.ErrInvalidSession)
	}

	exp, ok := expiry(s.AccessToken)
	if ok && !exp.After(now) {
		return fmt.Errorf("%w: access token expired at %s", common.ErrInvalidSession, exp.UTC().Format(time.RFC3339))
	}
	return nil
}

// expiry reads the exp claim without verifying the signature; the client
// has no key to verify with.
func expiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
