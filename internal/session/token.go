// Package session issues the signed, expiring cookie that identifies a
// viewer session across requests.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the viewer session cookie.
const CookieName = "steno_session"

// ErrInvalidToken is returned for tokens that fail signature or expiry checks.
var ErrInvalidToken = errors.New("invalid session token")

// Claims carries the session id in the standard subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer signs and verifies session tokens with an HS256 secret.
type Issuer struct {
	secret []byte
	secure bool
	now    func() time.Time
}

// NewIssuer creates an issuer. secure marks cookies Secure (HTTPS only).
func NewIssuer(secret string, secure bool) *Issuer {
	return &Issuer{secret: []byte(secret), secure: secure, now: time.Now}
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.New().String()
}

// Sign returns a token for sessionID that expires at exp.
func (i *Issuer) Sign(sessionID string, exp time.Time) (string, error) {
	now := i.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the session id it carries.
func (i *Issuer) Parse(raw string) (string, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// FromRequest returns the session id of a valid cookie on r.
func (i *Issuer) FromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	sid, err := i.Parse(c.Value)
	if err != nil {
		return "", false
	}
	return sid, true
}

// Cookie builds the session cookie for sessionID valid until exp.
func (i *Issuer) Cookie(sessionID string, exp time.Time) (*http.Cookie, error) {
	token, err := i.Sign(sessionID, exp)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(exp.Sub(i.now()).Seconds()),
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}
