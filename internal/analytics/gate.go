package analytics

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/matthewhartstonge/argon2"
)

const tokenSubject = "analytics"

var (
	ErrWrongPIN     = errors.New("incorrect PIN")
	ErrUnauthorized = errors.New("invalid or expired token")
)

// Gate guards the admin analytics pages. A correct PIN buys a short lived
// HS256 token. When pinHash (argon2 encoded) is set it takes precedence over
// the plain PIN.
type Gate struct {
	pin     string
	pinHash string
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

func NewGate(pin, pinHash, secret string, ttl time.Duration) *Gate {
	return &Gate{
		pin:     pin,
		pinHash: pinHash,
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
	}
}

func HashPIN(pin string) (string, error) {
	argon := argon2.DefaultConfig()
	encoded, err := argon.HashEncoded([]byte(pin))
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (g *Gate) check(pin string) bool {
	if pin == "" {
		return false
	}
	if g.pinHash != "" {
		ok, err := argon2.VerifyEncoded([]byte(pin), []byte(g.pinHash))
		return err == nil && ok
	}
	return subtle.ConstantTimeCompare([]byte(pin), []byte(g.pin)) == 1
}

// Unlock returns a signed token and its expiry for a correct PIN.
func (g *Gate) Unlock(pin string) (string, time.Time, error) {
	if !g.check(pin) {
		return "", time.Time{}, ErrWrongPIN
	}
	now := g.now()
	exp := now.Add(g.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (g *Gate) Verify(token string) error {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(tokenSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}
