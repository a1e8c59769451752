// Package api issues HTTP requests against the portal backend. It attaches
// the CSRF and caller-identity headers, normalizes error responses and fires
// a forced-logout hook on authentication failures. It never retries; retry
// policy belongs to the callers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"portalctl/internal/model"
)

// TokenSource supplies the anti-forgery token for mutating requests.
type TokenSource interface {
	CsrfToken() string
}

// IdentitySource reports the logged-in user, if any.
type IdentitySource interface {
	Identity() (uid string, authenticated bool)
}

// Error is a normalized non-2xx response.
type Error struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request failed: %s", e.Status)
}

// Client is a thin HTTP client for the portal API.
type Client struct {
	baseURL  string
	http     *http.Client
	tokens   TokenSource
	identity IdentitySource

	// onAuthFailure is invoked on a 401/403 response to an authenticated
	// request, before the error is returned. Set once during wiring.
	onAuthFailure func()
}

// NewClient creates a client for the given base URL (e.g. https://host/api/v0).
func NewClient(baseURL string, tokens TokenSource, identity IdentitySource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokens:   tokens,
		identity: identity,
	}
}

// SetAuthFailureHook registers the forced-logout side effect. The hook must
// not issue portal requests through this client.
func (c *Client) SetAuthFailureHook(fn func()) {
	c.onAuthFailure = fn
}

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.http.Timeout = d
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a backend GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, c.baseURL+path, nil, out, true)
}

// Post issues a backend POST with an optional JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, c.baseURL+path, body, out, true)
}

// Put issues a backend PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, c.baseURL+path, body, out, true)
}

// Delete issues a backend DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, c.baseURL+path, nil, out, true)
}

// Fetch queries an arbitrary URL without attaching portal headers.
func (c *Client) Fetch(ctx context.Context, method, url string, body, out any) error {
	return c.do(ctx, method, url, body, out, false)
}

// GetRaw issues a backend GET and returns the undecoded response body
// (e.g. the peer config QR code image).
func (c *Client) GetRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, http.MethodGet)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		ferr := c.failure(res, data)
		c.handleAuthFailure(res.StatusCode)
		return nil, ferr
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, url string, body, out any, portal bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if portal {
		c.setHeaders(req, method)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	text, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		ferr := c.failure(res, text)
		if portal {
			c.handleAuthFailure(res.StatusCode)
		}
		return ferr
	}

	// An empty body is a valid empty result, never an error.
	if out == nil || len(bytes.TrimSpace(text)) == 0 {
		return nil
	}
	return json.Unmarshal(text, out)
}

// setHeaders attaches the portal headers: the CSRF token for mutating
// methods and the caller identity while authenticated.
func (c *Client) setHeaders(req *http.Request, method string) {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		if token := c.tokens.CsrfToken(); token != "" {
			req.Header.Set("X-CSRF-TOKEN", token)
		}
	}
	if uid, ok := c.identity.Identity(); ok {
		req.Header.Set("X-FRONTEND-UID", uid)
	}
}

func (c *Client) failure(res *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var envelope model.Error
	if err := json.Unmarshal(body, &envelope); err == nil {
		// Structured error payload: use the message, or fall back to the
		// plain status text when the envelope carries none.
		msg = envelope.Message
	}
	return &Error{StatusCode: res.StatusCode, Status: res.Status, Message: msg}
}

func (c *Client) handleAuthFailure(status int) {
	if status != http.StatusUnauthorized && status != http.StatusForbidden {
		return
	}
	if _, ok := c.identity.Identity(); !ok {
		return
	}
	if c.onAuthFailure != nil {
		c.onAuthFailure()
	}
}
