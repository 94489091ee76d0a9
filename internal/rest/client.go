// Package rest is the client for the two HTTP collaborators: the core chat
// API (servers, channels, message history) and the authentication service.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/clutchchat/clutch/internal/models"
)

const defaultTimeout = 15 * time.Second

// StatusError is a non-2xx response, carrying the response body text so the
// caller can decide between retry and user-visible failure.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Client talks to the core API with a bearer credential and to the auth
// service without one. Safe for concurrent use.
type Client struct {
	apiBase  string
	authBase string
	http     *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken seeds the bearer credential, e.g. one restored from the cache.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the given core API and auth service base URLs.
func New(apiBase, authBase string, opts ...Option) *Client {
	c := &Client{
		apiBase:  strings.TrimSuffix(apiBase, "/"),
		authBase: strings.TrimSuffix(authBase, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer credential used on core API calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer credential.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// LoginResponse is the credential and profile issued by the auth service.
type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login authenticates against the auth service and installs the returned
// credential for subsequent core API calls.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, c.authBase+"/login", body, &out, false); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Register creates an account with the auth service.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, c.authBase+"/register", body, nil, false); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// ListServers returns the servers visible to the authenticated user.
func (c *Client) ListServers(ctx context.Context) ([]models.Server, error) {
	var out []models.Server
	if err := c.do(ctx, http.MethodGet, c.apiBase+"/servers", nil, &out, true); err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	return out, nil
}

// CreateServer creates a server owned by the authenticated user.
func (c *Client) CreateServer(ctx context.Context, name string) (*models.Server, error) {
	var out models.Server
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, c.apiBase+"/servers", body, &out, true); err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}
	return &out, nil
}

// ListChannels returns the channel directory for a server.
func (c *Client) ListChannels(ctx context.Context, serverID string) ([]models.Channel, error) {
	var out []models.Channel
	url := fmt.Sprintf("%s/servers/%s/channels", c.apiBase, serverID)
	if err := c.do(ctx, http.MethodGet, url, nil, &out, true); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return out, nil
}

// ListMessages returns the most recent page of messages for a channel,
// newest first, as delivered by the collaborator.
func (c *Client) ListMessages(ctx context.Context, channelID string, limit int) ([]models.Message, error) {
	var out []models.Message
	url := fmt.Sprintf("%s/channels/%s/messages?limit=%d", c.apiBase, channelID, limit)
	if err := c.do(ctx, http.MethodGet, url, nil, &out, true); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

// PostMessage creates a message. The created message is echoed back over the
// streaming connection, not through this response's consumers.
func (c *Client) PostMessage(ctx context.Context, channelID, content string) (*models.Message, error) {
	var out models.Message
	url := fmt.Sprintf("%s/channels/%s/messages", c.apiBase, channelID)
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, url, body, &out, true); err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, url string, body, out any, auth bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		if tok := c.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
