// Package models defines the core data structures for accounts, documents
// and authentication outcomes.
package models

import (
	"encoding/json"
	"errors"
	"time"
)

// UsersCollection is the document-store collection holding account records.
const UsersCollection = "users"

// Account is the persisted representation of a user in the document store.
type Account struct {
	// UID is the identifier returned by the identity provider.
	UID string `json:"uid"`
	// Username is the name chosen at registration. Empty for federated accounts.
	Username string `json:"username,omitempty"`
	// Email is the address the account was created or federated with.
	Email string `json:"email"`
	// DisplayName is the provider profile name of a federated account.
	DisplayName string `json:"displayName,omitempty"`
	// Provider names the sign-in method that created the record ("password", "google", ...).
	Provider string `json:"provider,omitempty"`
	// PasswordHash is the argon2id PHC string of the password. Empty for federated accounts.
	PasswordHash string `json:"passwordHash,omitempty"`
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"createdAt"`
}

// Document is a single record of a document-store collection.
type Document struct {
	// Key is the document key within its collection.
	Key string `json:"key"`
	// Data is the JSON-encoded document body.
	Data json.RawMessage `json:"data"`
}

// Session is what the identity provider returns after a successful
// account creation or credential exchange.
type Session struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	IDToken     string `json:"idToken"`
}

// Provider identifies a federated identity provider.
type Provider string

const (
	// Google is federated provider A.
	Google Provider = "google"
	// Facebook is federated provider B.
	Facebook Provider = "facebook"
)

// Scopes returns the permissions the native SDK prompts for.
func (p Provider) Scopes() []string {
	switch p {
	case Google:
		return []string{"openid", "email", "profile"}
	case Facebook:
		return []string{"public_profile", "email"}
	default:
		return nil
	}
}

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	return p == Google || p == Facebook
}

// MessageKind is the kind of a user-visible message.
type MessageKind string

const (
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Routes the UI shell can navigate to.
const (
	RouteHome   = "/home"
	RouteLogin  = "/login"
	RouteSignUp = "/signup"
)

// Identity is an account held by the identity emulator.
type Identity struct {
	UID          string
	Email        string
	PasswordHash string
	DisplayName  string
	Provider     string
	CreatedAt    time.Time
}

var (
	// ErrEmailExists is returned when an identity with the same email exists.
	ErrEmailExists = errors.New("email already exists")
	// ErrIdentityNotFound is returned when no identity matches.
	ErrIdentityNotFound = errors.New("identity not found")
)
