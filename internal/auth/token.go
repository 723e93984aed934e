// Package auth verifies the bearer tokens that authenticate API requests.
// Tokens are HS256 JWTs whose subject is the user's snowflake ID.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/gstbill/internal/clock"
	"github.com/smallbiznis/gstbill/internal/config"
)

const (
	DefaultIssuer   = "gstbill"
	DefaultTokenTTL = 24 * time.Hour
)

var (
	ErrMissingSecret = errors.New("auth_jwt_secret_missing")
	ErrInvalidToken  = errors.New("invalid_token")
	ErrInvalidUser   = errors.New("invalid_user")
)

type TokenManager struct {
	secret []byte
	issuer string
	clock  clock.Clock
}

func NewTokenManager(cfg config.Config, clk clock.Clock) (*TokenManager, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingSecret
		}
		secret = "gstbill-dev-secret"
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &TokenManager{secret: []byte(secret), issuer: DefaultIssuer, clock: clk}, nil
}

// Issue signs a token for userID valid for ttl.
func (m *TokenManager) Issue(userID snowflake.ID, ttl time.Duration) (string, error) {
	if userID == 0 {
		return "", ErrInvalidUser
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := m.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses raw and returns the user it was issued for.
func (m *TokenManager) Verify(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := snowflake.ParseString(claims.Subject)
	if err != nil || userID == 0 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
