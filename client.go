package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// APIError captures a non-2xx backend response. Detail carries the backend's
// user-displayable message when one was provided.
type APIError struct {
	Status int
	Detail string
	Method string
	Path   string
}

func (e *APIError) Error() string {
	if e == nil {
		return "api error"
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s %s failed (%d): %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s failed (%d)", e.Method, e.Path, e.Status)
}

// Metadata returns structured fields for rich error wrapping.
func (e *APIError) Metadata() map[string]any {
	if e == nil {
		return nil
	}
	meta := map[string]any{
		"status": e.Status,
		"method": e.Method,
		"path":   e.Path,
	}
	if e.Detail != "" {
		meta["detail"] = e.Detail
	}
	return meta
}

// IsUnauthorized reports whether err carries a 401 backend response.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return stderrors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// StatusFromError extracts the HTTP status of an APIError, 0 otherwise.
func StatusFromError(err error) int {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// LoginResponse is the body of POST /auth/login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// ExchangeResponse is the body of POST /auth/firebase-auth.
type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

// Client is the REST session client. Every outbound request attaches the
// stored token as a bearer credential, and any 401 response triggers the
// cross-cutting eviction policy: clear the credential store, notify eviction
// subscribers, and route the active view to the sign-in surface. The policy
// lives in the transport so no call path can opt out.
type Client struct {
	baseURL   string
	http      *http.Client
	store     CredentialStore
	navigator Navigator
	logger    Logger

	mu       sync.Mutex
	onEvict  []func(ctx context.Context)
	evicting bool
}

// ClientOption configures the REST session client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client. Its transport is
// still wrapped by the session transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithNavigator sets the sign-in navigation hook fired on forced eviction.
func WithNavigator(n Navigator) ClientOption {
	return func(c *Client) {
		if n != nil {
			c.navigator = n
		}
	}
}

// WithClientLogger overrides the client logger.
func WithClientLogger(l Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a REST session client rooted at baseURL. The store is
// read for request signing and cleared on 401.
func NewClient(baseURL string, store CredentialStore, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		store:     store,
		navigator: noopNavigator{},
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	// Shallow copy so we never mutate a shared http.Client.
	hc := *c.http
	hc.Transport = &sessionTransport{
		base:   base,
		store:  store,
		client: c,
		logger: c.logger,
	}
	c.http = &hc

	return c
}

// OnEviction registers a subscriber invoked after a 401-triggered eviction
// has cleared the credential store. Implements EvictionNotifier.
func (c *Client) OnEviction(fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = append(c.onEvict, fn)
}

var _ EvictionNotifier = (*Client)(nil)
var _ Backend = (*Client)(nil)

// Login calls POST /auth/login.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	out := &LoginResponse{}
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FederatedExchange calls POST /auth/firebase-auth, tagging the exchange with
// the requested user type.
func (c *Client) FederatedExchange(ctx context.Context, idToken string, userType Role) (*ExchangeResponse, error) {
	out := &ExchangeResponse{}
	err := c.do(ctx, http.MethodPost, "/auth/firebase-auth", map[string]string{
		"id_token":  idToken,
		"user_type": string(userType),
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Me calls GET /auth/me and returns the current profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	out := &User{}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, out); err != nil {
		return nil, err
	}
	out.EnsureRole()
	return out, nil
}

// Logout calls POST /auth/logout. Best effort; the coordinator evicts local
// state regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// CreateUser calls POST /crm/create_user and returns the created profile.
func (c *Client) CreateUser(ctx context.Context, msg SignupMessage) (*User, error) {
	out := &User{}
	if err := c.do(ctx, http.MethodPost, "/crm/create_user", msg, out); err != nil {
		return nil, err
	}
	out.EnsureRole()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "backend request failed").
			WithMetadata(map[string]any{"method": method, "path": path})
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return c.apiError(res, method, path)
	}

	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to decode response body").
			WithMetadata(map[string]any{"method": method, "path": path})
	}

	return nil
}

// apiError extracts the backend's detail message. Unrecognized shapes map to
// a bare status error rather than propagating untyped data.
func (c *Client) apiError(res *http.Response, method, path string) error {
	apiErr := &APIError{
		Status: res.StatusCode,
		Method: method,
		Path:   path,
	}

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err == nil {
		apiErr.Detail = payload.Detail
	}

	return apiErr
}

// sessionTransport signs outbound requests and enforces the 401 eviction
// policy at the transport level.
type sessionTransport struct {
	base   http.RoundTripper
	store  CredentialStore
	client *Client
	logger Logger
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.store != nil {
		cred, err := t.store.Get(ctx)
		if err != nil {
			t.logger.Warn("credential read failed, sending unauthenticated: %v", err)
		} else if cred != nil && cred.Token != "" {
			req = req.Clone(ctx)
			req.Header.Set("Authorization", "Bearer "+cred.Token)
		}
	}

	res, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusUnauthorized {
		t.client.evict(ctx)
	}

	return res, nil
}

// evict clears the store, notifies subscribers, and routes to sign-in. It
// runs before the 401 propagates so the store is already empty when the
// caller observes the error.
func (c *Client) evict(ctx context.Context) {
	c.mu.Lock()
	if c.evicting {
		c.mu.Unlock()
		return
	}
	c.evicting = true
	subs := make([]func(context.Context), len(c.onEvict))
	copy(subs, c.onEvict)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.evicting = false
		c.mu.Unlock()
	}()

	c.logger.Info("unauthorized response, evicting session")

	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			c.logger.Error("credential eviction failed: %v", err)
		}
	}

	for _, fn := range subs {
		fn(ctx)
	}

	c.navigator.ToSignIn()
}
