package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "miniworld"

var (
	// ErrInvalidToken - токен не прошёл проверку подписи или срока
	ErrInvalidToken = errors.New("invalid token")
	// ErrWeakSecret - секрет короче 32 байт
	ErrWeakSecret = errors.New("secret key must be at least 32 bytes")
)

// Claims represents JWT claims of a server operator
type Claims struct {
	Operator string `json:"operator"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Authenticator выпускает и проверяет токены операторов (HS256)
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator создаёт аутентификатор из base64-секрета
func NewAuthenticator(secretB64 string) (*Authenticator, error) {
	decoded, err := base64.StdEncoding.DecodeString(secretB64)
	if err != nil {
		return nil, fmt.Errorf("jwt secret: %w", err)
	}
	if len(decoded) < 32 {
		return nil, ErrWeakSecret
	}
	return &Authenticator{secret: decoded, now: time.Now}, nil
}

// IssueToken creates a signed token for the given operator
func (a *Authenticator) IssueToken(operator string, isAdmin bool, ttl time.Duration) (string, error) {
	now := a.now()
	claims := &Claims{
		Operator: operator,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   operator,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Validate checks token validity and returns its claims
func (a *Authenticator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateSecureSecret generates a new secure secret key
func GenerateSecureSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}
