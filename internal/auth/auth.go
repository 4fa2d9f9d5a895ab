// Package auth issues and checks admin tokens.
//
// There is a single admin identity guarded by a bcrypt password hash. A
// successful login returns an HS256 token the admin panel sends back as a
// bearer token.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"photokiosk/internal/localtime"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrNotConfigured      = errors.New("auth: admin password not configured")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

const (
	adminSubject = "admin"
	issuer       = "photokiosk"
)

// Claims is the payload of an admin token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret       []byte
	passwordHash []byte
	ttl          time.Duration
	clock        localtime.TimeProvider
}

func NewIssuer(secret, passwordHash string, ttl time.Duration, clock localtime.TimeProvider) *Issuer {
	if clock == nil {
		clock = &localtime.DefaultTimeProvider{}
	}
	return &Issuer{
		secret:       []byte(secret),
		passwordHash: []byte(passwordHash),
		ttl:          ttl,
		clock:        clock,
	}
}

// Login checks password against the admin hash and issues a token.
func (i *Issuer) Login(password string) (string, time.Time, error) {
	if len(i.passwordHash) == 0 {
		return "", time.Time{}, ErrNotConfigured
	}
	if err := bcrypt.CompareHashAndPassword(i.passwordHash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return i.Issue()
}

// Issue signs a fresh admin token.
func (i *Issuer) Issue() (string, time.Time, error) {
	now := i.clock.Now(time.UTC)
	expires := now.Add(i.ttl)
	claims := &Claims{
		Role: adminSubject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   adminSubject,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks signature, algorithm, expiry and subject.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(adminSubject),
		jwt.WithTimeFunc(func() time.Time { return i.clock.Now(time.UTC) }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash to put in KIOSK_ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
