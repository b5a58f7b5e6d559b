// Package client talks to the record service over HTTP. A Client is both the
// remote.Store the sync core writes through and the session.Provider the
// session bridge signs in with.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger

	mu    sync.RWMutex
	token string

	// OpenURL presents the provider's authorize page to the user during
	// federated sign-in.
	OpenURL func(string) error
	// CallbackTimeout bounds the wait for the federated sign-in redirect.
	CallbackTimeout time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l.Named("client") }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", baseURL)
	}
	c := &Client{
		base:            u,
		http:            &http.Client{Timeout: 30 * time.Second},
		logger:          zap.NewNop(),
		CallbackTimeout: 5 * time.Minute,
	}
	c.OpenURL = c.printURL
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// SetToken sets the bearer sent with every request. It matches the
// session.Bridge subscription signature.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) printURL(u string) error {
	fmt.Printf("Open this URL to sign in:\n\n  %s\n\n", u)
	return nil
}

// apiError is a non-2xx answer from the service.
type apiError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// bearer overrides the client token when set.
	bearer string
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	u := *c.base
	u.Path = c.base.Path + req.path
	u.RawQuery = req.query.Encode()

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	hr, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return err
	}
	hr.Header.Set("Accept", "application/json")
	if body != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	tok := req.bearer
	if tok == "" {
		tok = c.Token()
	}
	if tok != "" {
		hr.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	res, err := c.http.Do(hr)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	c.logger.Debug("request",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", res.StatusCode),
		zap.Duration("took", time.Since(start)))

	if res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		ae := &apiError{}
		if json.Unmarshal(raw, ae) != nil || ae.Message == "" {
			ae.Message = strings.TrimSpace(string(raw))
			if ae.Message == "" {
				ae.Message = http.StatusText(res.StatusCode)
			}
		}
		ae.Status = res.StatusCode
		return ae
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
