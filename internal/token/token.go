// Package token issues and verifies the HS256 JWTs used by the emulator:
// session ID tokens returned to clients, and provider tokens standing in
// for the ones a real federated provider would hand out.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atinyakov/doafavor/internal/models"
)

const (
	sessionAudience = "doafavor"
	minSecretLength = 32
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// Config holds the signing parameters.
type Config struct {
	// SessionSecret signs session ID tokens.
	SessionSecret []byte
	// ProviderSecret signs provider tokens.
	ProviderSecret []byte
	// Issuer is the iss claim of every token.
	Issuer string
	// SessionTTL and ProviderTTL bound token lifetimes.
	SessionTTL  time.Duration
	ProviderTTL time.Duration
}

// SessionClaims are carried by session ID tokens. Subject is the uid.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ProviderClaims are carried by provider tokens. Audience is the provider.
type ProviderClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and parses tokens.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.SessionSecret) < minSecretLength || len(cfg.ProviderSecret) < minSecretLength {
		return nil, fmt.Errorf("token secrets must be at least %d bytes", minSecretLength)
	}
	if cfg.SessionTTL <= 0 || cfg.ProviderTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	return &Manager{config: cfg, now: time.Now}, nil
}

// IssueSession returns a session ID token for uid.
func (m *Manager) IssueSession(uid, email string) (string, error) {
	now := m.now()
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.SessionSecret)
}

// ParseSession verifies a session ID token.
func (m *Manager) ParseSession(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := m.parse(raw, claims, m.config.SessionSecret, sessionAudience); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// IssueProviderToken returns a token the emulator accepts as provider's
// credential for email.
func (m *Manager) IssueProviderToken(provider models.Provider, email, name string) (string, error) {
	now := m.now()
	claims := ProviderClaims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{string(provider)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.ProviderTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.ProviderSecret)
}

// ParseProviderToken verifies a provider token issued for provider.
func (m *Manager) ParseProviderToken(provider models.Provider, raw string) (*ProviderClaims, error) {
	claims := &ProviderClaims{}
	if err := m.parse(raw, claims, m.config.ProviderSecret, string(provider)); err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrInvalidToken)
	}
	return claims, nil
}

func (m *Manager) parse(raw string, claims jwt.Claims, key []byte, audience string) error {
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
