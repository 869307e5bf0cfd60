// Package service coordinates account registration and sign-in against the
// identity provider and the document store, normalizes every attempt into a
// models.Outcome and reports it to the UI shell.
package service

import (
	"context"
	"encoding/json"

	"github.com/atinyakov/doafavor/internal/models"
)

// DocumentStore defines the document-database operations the orchestrator needs.
type DocumentStore interface {
	// Query returns every document of collection whose field equals value.
	Query(ctx context.Context, collection, field, value string) ([]models.Document, error)
	// CreateOrReplace writes data under key, replacing any existing document.
	CreateOrReplace(ctx context.Context, collection, key string, data json.RawMessage) error
	// Append stores data under a generated key and returns that key.
	Append(ctx context.Context, collection string, data json.RawMessage) (string, error)
}

// IdentityProvider defines the account operations delegated to the identity service.
type IdentityProvider interface {
	// CreateAccountWithPassword registers a password account.
	CreateAccountWithPassword(ctx context.Context, email, password string) (models.Session, error)
	// ExchangeFederatedCredential trades a provider token for a session.
	ExchangeFederatedCredential(ctx context.Context, provider models.Provider, token string) (models.Session, error)
}

// FederatedFlow obtains a provider token on the current platform. It returns
// models.ErrCancelled when the user dismisses the provider prompt.
type FederatedFlow interface {
	Begin(ctx context.Context, provider models.Provider) (string, error)
}

// Shell is the UI collaborator. The orchestrator never renders anything itself.
type Shell interface {
	ShowMessage(kind models.MessageKind, text string)
	RequestNavigation(route string)
}

// PasswordHasher hashes passwords stored in account records.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}
