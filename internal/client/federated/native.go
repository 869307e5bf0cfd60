package federated

import (
	"context"
	"errors"
	"fmt"

	"github.com/atinyakov/doafavor/internal/models"
)

// ErrNoAccessToken is returned when the SDK grants permission but yields no
// token. The message is shown to the user as is.
var ErrNoAccessToken = errors.New("Something went wrong obtaining access token")

// SDK is the native provider SDK handoff.
type SDK interface {
	// RequestPermissions prompts for scopes; granted is false when the user declines.
	RequestPermissions(ctx context.Context, provider models.Provider, scopes []string) (granted bool, err error)
	// AccessToken returns the current access token, or "" when none is held.
	AccessToken(ctx context.Context, provider models.Provider) (string, error)
}

// NativeFlow obtains provider tokens through an SDK.
type NativeFlow struct {
	SDK SDK
}

// Begin implements Flow.
func (f *NativeFlow) Begin(ctx context.Context, provider models.Provider) (string, error) {
	granted, err := f.SDK.RequestPermissions(ctx, provider, provider.Scopes())
	if err != nil {
		return "", fmt.Errorf("request permissions: %w", err)
	}
	if !granted {
		return "", ErrCancelled
	}
	tok, err := f.SDK.AccessToken(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("obtain access token: %w", err)
	}
	if tok == "" {
		return "", ErrNoAccessToken
	}
	return tok, nil
}
