package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestDecode(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	raw := signToken(t, jwt.MapClaims{
		"sub":         "user-42",
		"email":       "a@b.com",
		"role":        "manager",
		"permissions": []string{"view:pipelines", "manage:sources"},
		"iat":         time.Now().Unix(),
		"exp":         exp.Unix(),
	})

	claims, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Email != "a@b.com" {
		t.Fatalf("unexpected email: %s", claims.Email)
	}
	if claims.Role != "manager" {
		t.Fatalf("unexpected role: %s", claims.Role)
	}
	if len(claims.Permissions) != 2 || claims.Permissions[0] != "view:pipelines" {
		t.Fatalf("permissions were not preserved: %v", claims.Permissions)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("expected expiry %v, got %v", exp, claims.ExpiresAt)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"not-a-token",
		"only.two",
		"a.b.c.d",
		"!!!.???.###",
		"eyJhbGciOiJIUzI1NiJ9.bm90LWpzb24.sig",
	} {
		if _, err := Decode(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Now()

	past := signToken(t, jwt.MapClaims{"sub": "u", "exp": now.Add(-time.Minute).Unix()})
	if !isExpiredAt(past, DefaultSkew, now) {
		t.Fatalf("token expired a minute ago should be expired")
	}

	future := signToken(t, jwt.MapClaims{"sub": "u", "exp": now.Add(time.Hour).Unix()})
	if isExpiredAt(future, DefaultSkew, now) {
		t.Fatalf("token valid for an hour should not be expired")
	}

	// Within the skew window the token counts as expired even though the
	// expiry timestamp is still in the future.
	nearExpiry := signToken(t, jwt.MapClaims{"sub": "u", "exp": now.Add(5 * time.Second).Unix()})
	if !isExpiredAt(nearExpiry, DefaultSkew, now) {
		t.Fatalf("token inside the skew window should be expired")
	}
	if isExpiredAt(nearExpiry, 0, now) {
		t.Fatalf("token outside a zero skew window should not be expired")
	}
}

func TestIsExpiredOnBadInput(t *testing.T) {
	if !IsExpired("garbage", DefaultSkew) {
		t.Fatalf("undecodable token must be expired")
	}
	noExp := signToken(t, jwt.MapClaims{"sub": "u"})
	if !IsExpired(noExp, DefaultSkew) {
		t.Fatalf("token without expiry claim must be expired")
	}
}
