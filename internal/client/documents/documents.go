// Package documents is the HTTP client for the emulator's document store.
package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/atinyakov/doafavor/internal/client"
	"github.com/atinyakov/doafavor/internal/models"
)

// ErrNoSession is returned by writes attempted before any sign-in.
var ErrNoSession = errors.New("no session token for document write")

// TokenSource supplies the session token sent with writes.
type TokenSource interface {
	IDToken() string
}

// Client implements the orchestrator's document store over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// New returns a Client for the emulator at baseURL.
func New(baseURL string, hc *http.Client, tokens TokenSource) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc, tokens: tokens}
}

// Query returns every document of collection whose field equals value.
func (c *Client) Query(ctx context.Context, collection, field, value string) ([]models.Document, error) {
	q := url.Values{"field": {field}, "value": {value}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.collectionURL(collection)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	var docs []models.Document
	if err := c.do(req, http.StatusOK, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// CreateOrReplace writes data under key.
func (c *Client) CreateOrReplace(ctx context.Context, collection, key string, data json.RawMessage) error {
	req, err := c.write(ctx, http.MethodPut, c.collectionURL(collection)+"/"+url.PathEscape(key), data)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, nil)
}

// Append stores data under a key chosen by the store and returns it.
func (c *Client) Append(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	req, err := c.write(ctx, http.MethodPost, c.collectionURL(collection), data)
	if err != nil {
		return "", err
	}
	var out struct {
		Key string `json:"key"`
	}
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		return "", err
	}
	return out.Key, nil
}

func (c *Client) collectionURL(collection string) string {
	return c.baseURL + "/v1/documents/" + url.PathEscape(collection)
}

func (c *Client) write(ctx context.Context, method, target string, data json.RawMessage) (*http.Request, error) {
	tok := c.tokens.IDToken()
	if tok == "" {
		return nil, ErrNoSession
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	return req, nil
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("document store unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return fmt.Errorf("document store: %s", client.ErrorMessage(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
