// Package identity is the HTTP client for the emulator's identity endpoints.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/atinyakov/doafavor/internal/client"
	"github.com/atinyakov/doafavor/internal/models"
)

// ProviderError is a rejection reported by the identity provider. Its
// message is shown to the user verbatim.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string { return e.Message }

// Client talks to the identity emulator and remembers the ID token of the
// latest session so that document writes can be authorized with it.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.RWMutex
	idToken string
}

// New returns a Client for the emulator at baseURL.
func New(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// CreateAccountWithPassword registers a password account.
func (c *Client) CreateAccountWithPassword(ctx context.Context, email, password string) (models.Session, error) {
	var sess models.Session
	err := c.post(ctx, "/v1/accounts/signup", map[string]string{
		"email":    email,
		"password": password,
	}, &sess)
	if err != nil {
		return models.Session{}, err
	}
	c.setToken(sess.IDToken)
	return sess, nil
}

// ExchangeFederatedCredential trades a provider token for a session.
func (c *Client) ExchangeFederatedCredential(ctx context.Context, provider models.Provider, token string) (models.Session, error) {
	var sess models.Session
	err := c.post(ctx, "/v1/accounts/federated", map[string]string{
		"provider": string(provider),
		"token":    token,
	}, &sess)
	if err != nil {
		return models.Session{}, err
	}
	c.setToken(sess.IDToken)
	return sess, nil
}

// ProviderToken asks the emulator to mint the access token a native provider
// SDK would return for the given profile.
func (c *Client) ProviderToken(ctx context.Context, provider models.Provider, email, name string) (string, error) {
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	err := c.post(ctx, "/v1/providers/"+string(provider)+"/token", map[string]string{
		"email": email,
		"name":  name,
	}, &out)
	return out.AccessToken, err
}

// AuthorizeURL is the consent page of provider for the web flow.
func (c *Client) AuthorizeURL(provider models.Provider) string {
	return c.baseURL + "/v1/providers/" + string(provider) + "/authorize"
}

// IDToken returns the ID token of the latest session, or "".
func (c *Client) IDToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idToken
}

func (c *Client) setToken(tok string) {
	c.mu.Lock()
	c.idToken = tok
	c.mu.Unlock()
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Status: resp.StatusCode, Message: client.ErrorMessage(resp)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
