package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/atinyakov/doafavor/internal/models"
)

// TokenMinter mints the access token a provider SDK would hold.
type TokenMinter interface {
	ProviderToken(ctx context.Context, provider models.Provider, email, name string) (string, error)
}

// TerminalSDK plays the native provider SDK on a terminal: the permission
// prompt is a y/N question and the provider profile is typed in.
type TerminalSDK struct {
	Prompter *Prompter
	Tokens   TokenMinter

	mu       sync.Mutex
	profiles map[models.Provider]profile
}

type profile struct {
	email, name string
}

// RequestPermissions asks the user to grant scopes and, when granted,
// collects the profile the provider would share.
func (s *TerminalSDK) RequestPermissions(ctx context.Context, provider models.Provider, scopes []string) (bool, error) {
	q := fmt.Sprintf("Allow doafavor to access your %s account (%s)?", provider, strings.Join(scopes, ", "))
	ok, err := s.Prompter.Confirm(q)
	if err != nil || !ok {
		return false, err
	}
	email, err := s.Prompter.Line(fmt.Sprintf("%s email", provider))
	if err != nil {
		return false, err
	}
	name, err := s.Prompter.Line(fmt.Sprintf("%s display name (optional)", provider))
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profiles == nil {
		s.profiles = make(map[models.Provider]profile)
	}
	s.profiles[provider] = profile{email: strings.TrimSpace(email), name: strings.TrimSpace(name)}
	return true, nil
}

// AccessToken returns "" when permissions were never granted for provider.
func (s *TerminalSDK) AccessToken(ctx context.Context, provider models.Provider) (string, error) {
	s.mu.Lock()
	p, ok := s.profiles[provider]
	s.mu.Unlock()
	if !ok || p.email == "" {
		return "", nil
	}
	return s.Tokens.ProviderToken(ctx, provider, p.email, p.name)
}
