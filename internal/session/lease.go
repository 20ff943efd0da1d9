package session

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// LeaseSigner issues the token a client must present to drive a session.
// It proves ownership of the session, not who the user is.
type LeaseSigner struct {
	hmac []byte
	now  func() time.Time
}

// NewLeaseSigner derives the HS256 key from secret so operators can use a
// passphrase of any length.
func NewLeaseSigner(secret string) *LeaseSigner {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("qbank session lease v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		// hkdf only fails past 255*32 bytes of output
		panic(err)
	}
	return &LeaseSigner{hmac: key, now: time.Now}
}

type leaseClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

func (l *LeaseSigner) Issue(sessionID string, ttl time.Duration) (string, error) {
	now := l.now()
	claims := &leaseClaims{
		SID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "mindengage-qbank",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(l.hmac)
}

// Verify checks the signature, the expiry and that the token was issued
// for sessionID.
func (l *LeaseSigner) Verify(token, sessionID string) error {
	if token == "" {
		return fmt.Errorf("missing lease: %w", ErrBadLease)
	}
	parsed, err := jwt.ParseWithClaims(token, &leaseClaims{}, func(t *jwt.Token) (interface{}, error) {
		return l.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(l.now))
	if err != nil || !parsed.Valid {
		return fmt.Errorf("%w: %v", ErrBadLease, err)
	}
	c, ok := parsed.Claims.(*leaseClaims)
	if !ok || c.SID != sessionID {
		return fmt.Errorf("lease is for another session: %w", ErrBadLease)
	}
	return nil
}
