// Package auth issues and validates session tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/papercex/backend/internal/config"
)

const insecureDefaultSecret = "!!REPLACE_THIS_WITH_A_STRONG_SECRET_KEY!!"

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims defines the structure of the JWT payload
type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	jwt.RegisteredClaims
}

// Manager signs tokens with a single HMAC secret.
type Manager struct {
	secret     []byte
	ttl        time.Duration
	issuer     string
	adminEmail string
	now        func() time.Time
}

// NewManager builds a Manager from configuration. An empty secret falls back
// to a fixed development secret with a warning.
func NewManager(cfg config.Auth, logger *zap.Logger) *Manager {
	secret := cfg.JWTSecret
	if secret == "" {
		if logger != nil {
			logger.Warn("JWT secret not configured, using default insecure secret")
		}
		secret = insecureDefaultSecret
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		secret:     []byte(secret),
		ttl:        ttl,
		issuer:     cfg.Issuer,
		adminEmail: strings.ToLower(strings.TrimSpace(cfg.AdminEmail)),
		now:        time.Now,
	}
}

// Generate creates a signed token for the user.
func (m *Manager) Generate(userID uuid.UUID, email, username string) (string, error) {
	now := m.now()
	claims := &Claims{
		UserID:   userID,
		Email:    email,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses a token string and returns its claims. Every failure wraps
// ErrInvalidToken.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithTimeFunc(m.now)}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsAdmin reports whether email is the configured administrator address.
func (m *Manager) IsAdmin(email string) bool {
	return m.adminEmail != "" && strings.EqualFold(strings.TrimSpace(email), m.adminEmail)
}
