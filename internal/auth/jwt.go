// Package auth issues and verifies the signed session tokens that bind a
// request to a user.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const hkdfInfo = "pairchat session v1"

// JWTManager signs and validates session tokens.
type JWTManager struct {
	keys      map[string][]byte // kid -> derived HMAC key
	activeKid string
	duration  time.Duration
}

// Claims is the session payload: who logged in and under which name.
type Claims struct {
	UserID int64  `json:"user_id"`
	Phone  string `json:"phone"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// NewJWTManager returns a manager signing with a single secret.
func NewJWTManager(secret string, duration time.Duration) *JWTManager {
	return NewJWTManagerFromKeys(map[string]string{"": secret}, "", duration)
}

// NewJWTManagerFromKeys returns a manager that signs with activeKid and
// accepts tokens signed by any key in keys, so old keys keep verifying after
// a rotation.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	derived := make(map[string][]byte, len(keys))
	for kid, secret := range keys {
		derived[kid] = deriveKey(secret, kid)
	}
	return &JWTManager{keys: derived, activeKid: activeKid, duration: duration}
}

// deriveKey stretches a configured secret into a 32-byte HMAC key bound to
// its key id.
func deriveKey(secret, kid string) []byte {
	r := hkdf.New(sha256.New, []byte(secret), []byte(kid), []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		// hkdf only fails past 255*HashLen bytes
		panic(err)
	}
	return key
}

// Duration is how long issued tokens stay valid.
func (m *JWTManager) Duration() time.Duration {
	return m.duration
}

// GenerateToken issues a signed token for a session.
func (m *JWTManager) GenerateToken(userID int64, phone, name string) (string, time.Time, error) {
	key, ok := m.keys[m.activeKid]
	if !ok {
		return "", time.Time{}, fmt.Errorf("active key %q not configured", m.activeKid)
	}

	now := time.Now()
	expiresAt := now.Add(m.duration)
	claims := &Claims{
		UserID: userID,
		Phone:  phone,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.activeKid != "" {
		token.Header["kid"] = m.activeKid
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		key, ok := m.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID <= 0 {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}
