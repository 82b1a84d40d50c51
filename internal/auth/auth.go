// Package auth issues and verifies the session tokens handed out at login, so
// a client can log in again on a new connection without resending a password.
package auth

import (
	"errors"
	"time"

	"github.com/cventus/azif/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long a token stays valid when no TTL is configured.
const DefaultTTL = 24 * time.Hour

const issuer = "azif"

// Issuer signs HS256 tokens whose subject is the user id.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. A zero ttl uses DefaultTTL.
func NewIssuer(secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for userID.
func (i *Issuer) Issue(userID string) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, "sign session token", err)
	}
	return signed, nil
}

// Verify checks the token and returns its user id.
func (i *Issuer) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeUnauthenticated, "invalid session token", err)
	}
	if claims.Subject == "" {
		return "", apperr.Unauthenticatedf("session token has no subject")
	}
	return claims.Subject, nil
}
