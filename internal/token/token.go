// Package token inspects the structure of bearer tokens without verifying
// signatures. Verification is the server's job; the client only needs the
// expiry and the identity claims so it can refresh credentials before they
// lapse and gate UI affordances without a network round trip.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSkew guards against using a token that expires mid-flight.
const DefaultSkew = 10 * time.Second

// ErrMalformed indicates the token is not structurally a JWT.
var ErrMalformed = errors.New("token: malformed")

// Claims are the fields the client extracts from an access token payload.
type Claims struct {
	Subject     string
	Email       string
	Role        string
	Permissions []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type payload struct {
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser()

// Decode extracts claims from a raw token without contacting the network and
// without checking the signature. It fails with ErrMalformed when the input
// is not three dot-separated base64url segments or the payload segment is
// not valid JSON.
func Decode(raw string) (Claims, error) {
	var p payload
	if _, _, err := parser.ParseUnverified(raw, &p); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	claims := Claims{
		Subject:     p.Subject,
		Email:       p.Email,
		Role:        p.Role,
		Permissions: p.Permissions,
	}
	if p.IssuedAt != nil {
		claims.IssuedAt = p.IssuedAt.Time
	}
	if p.ExpiresAt != nil {
		claims.ExpiresAt = p.ExpiresAt.Time
	}
	return claims, nil
}

// IsExpired reports whether the token should no longer be presented as a
// bearer credential. Undecodable tokens and tokens without an expiry claim
// count as expired.
func IsExpired(raw string, skew time.Duration) bool {
	return isExpiredAt(raw, skew, time.Now())
}

func isExpiredAt(raw string, skew time.Duration, now time.Time) bool {
	claims, err := Decode(raw)
	if err != nil {
		return true
	}
	if claims.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(claims.ExpiresAt.Add(-skew))
}
