// Package federated obtains provider tokens for federated sign-in, either
// through a browser popup-and-redirect or through a native provider SDK.
package federated

import (
	"context"
	"fmt"

	"github.com/atinyakov/doafavor/internal/models"
)

// ErrCancelled is returned when the user dismisses the provider prompt.
var ErrCancelled = models.ErrCancelled

// Flow obtains a provider token for one sign-in attempt.
type Flow interface {
	Begin(ctx context.Context, provider models.Provider) (string, error)
}

// Platform names the runtime the client runs on.
type Platform string

// Supported platforms.
const (
	PlatformWeb    Platform = "web"
	PlatformNative Platform = "native"
)

// Select picks the flow for platform. It is evaluated once at startup.
func Select(platform Platform, web, native Flow) (Flow, error) {
	switch platform {
	case PlatformWeb:
		return web, nil
	case PlatformNative:
		return native, nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}
}
