package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atinyakov/doafavor/internal/models"
	"github.com/atinyakov/doafavor/internal/token"
)

// ErrInvalidIDPResponse is returned when a provider token does not verify.
var ErrInvalidIDPResponse = errors.New("invalid identity provider response")

// IdentityRepository defines the persistence operations required by the
// emulator's identity service.
type IdentityRepository interface {
	// CreateIdentity stores a new identity; duplicate emails yield models.ErrEmailExists.
	CreateIdentity(ctx context.Context, id models.Identity) error
	// GetIdentityByEmail returns models.ErrIdentityNotFound when absent.
	GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error)
}

// TokenManager issues session tokens and verifies provider tokens.
type TokenManager interface {
	IssueSession(uid, email string) (string, error)
	IssueProviderToken(provider models.Provider, email, name string) (string, error)
	ParseProviderToken(provider models.Provider, raw string) (*token.ProviderClaims, error)
}

// IdentityService implements the identity-provider side of the emulator.
type IdentityService struct {
	repo   IdentityRepository
	tokens TokenManager
	hasher PasswordHasher
	newUID func() string
	now    func() time.Time
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(repo IdentityRepository, tokens TokenManager, hasher PasswordHasher) *IdentityService {
	return &IdentityService{
		repo:   repo,
		tokens: tokens,
		hasher: hasher,
		newUID: uuid.NewString,
		now:    time.Now,
	}
}

// SignUp creates a password identity and returns its session.
func (s *IdentityService) SignUp(ctx context.Context, email, password string) (models.Session, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.Session{}, fmt.Errorf("hash password: %w", err)
	}

	id := models.Identity{
		UID:          s.newUID(),
		Email:        email,
		PasswordHash: hash,
		Provider:     "password",
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateIdentity(ctx, id); err != nil {
		return models.Session{}, err
	}
	return s.session(id, "")
}

// SignInWithProvider verifies a provider token and returns the session of
// the identity with the token's email, creating that identity on first use.
func (s *IdentityService) SignInWithProvider(ctx context.Context, provider models.Provider, raw string) (models.Session, error) {
	claims, err := s.tokens.ParseProviderToken(provider, raw)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", ErrInvalidIDPResponse, err)
	}

	id, err := s.repo.GetIdentityByEmail(ctx, claims.Email)
	if errors.Is(err, models.ErrIdentityNotFound) {
		id, err = s.createFederated(ctx, provider, claims)
	}
	if err != nil {
		return models.Session{}, err
	}
	return s.session(*id, claims.Name)
}

// IssueProviderToken mints a token as the provider would after consent.
func (s *IdentityService) IssueProviderToken(provider models.Provider, email, name string) (string, error) {
	return s.tokens.IssueProviderToken(provider, email, name)
}

func (s *IdentityService) createFederated(ctx context.Context, provider models.Provider, claims *token.ProviderClaims) (*models.Identity, error) {
	id := models.Identity{
		UID:         s.newUID(),
		Email:       claims.Email,
		DisplayName: claims.Name,
		Provider:    string(provider),
		CreatedAt:   s.now().UTC(),
	}
	err := s.repo.CreateIdentity(ctx, id)
	if errors.Is(err, models.ErrEmailExists) {
		// Lost a race with a concurrent first sign-in.
		return s.repo.GetIdentityByEmail(ctx, claims.Email)
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *IdentityService) session(id models.Identity, profileName string) (models.Session, error) {
	tok, err := s.tokens.IssueSession(id.UID, id.Email)
	if err != nil {
		return models.Session{}, fmt.Errorf("issue session: %w", err)
	}
	return models.Session{
		UID:         id.UID,
		Email:       id.Email,
		DisplayName: cmp.Or(profileName, id.DisplayName),
		IDToken:     tok,
	}, nil
}
