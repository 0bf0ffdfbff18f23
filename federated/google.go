package federated

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"

	"github.com/goliatone/go-authclient"
)

const googleIssuer = "https://accounts.google.com"

// URLOpener opens the provider's authorization URL in the user's browser.
// Hosts supply their own implementation (desktop shells, test stubs).
type URLOpener interface {
	Open(url string) error
}

// URLOpenerFunc adapts a function to the URLOpener interface.
type URLOpenerFunc func(url string) error

func (f URLOpenerFunc) Open(url string) error {
	if f == nil {
		return stderrors.New("no opener configured")
	}
	return f(url)
}

// TokenCache persists redirect-flow state between loads. Take is consuming.
type TokenCache interface {
	Save(ctx context.Context, value string) error
	Take(ctx context.Context) (string, error)
}

// MemoryTokenCache keeps the redirect state in process memory.
type MemoryTokenCache struct {
	mu    sync.Mutex
	value string
}

var _ TokenCache = (*MemoryTokenCache)(nil)

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{}
}

func (c *MemoryTokenCache) Save(_ context.Context, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	return nil
}

func (c *MemoryTokenCache) Take(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value := c.value
	c.value = ""
	return value, nil
}

// GoogleConfig configures the Google provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	// Scopes beyond openid/profile/email.
	Scopes []string
	// ListenAddr is the loopback address for the pop-up callback listener.
	// Defaults to an ephemeral 127.0.0.1 port.
	ListenAddr string
	// RedirectURL is the registered redirect URI used by the fallback flow.
	RedirectURL string
	// Opener launches the authorization URL. Required for interactive flows.
	Opener URLOpener
}

// GoogleProvider implements Provider over Google's OIDC surface. The pop-up
// flow is a loopback authorization-code flow: the provider opens a browser
// window and captures the redirect on a local listener. The fallback flow
// uses the registered RedirectURL and completes on a later load.
type GoogleProvider struct {
	cfg      GoogleConfig
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	cache    TokenCache
	logger   authclient.Logger
}

var _ Provider = (*GoogleProvider)(nil)

// GoogleOption configures the provider.
type GoogleOption func(*GoogleProvider)

// WithTokenCache overrides redirect-state persistence. Use a durable cache
// when redirect completions must survive a restart.
func WithTokenCache(c TokenCache) GoogleOption {
	return func(g *GoogleProvider) {
		if c != nil {
			g.cache = c
		}
	}
}

// WithGoogleLogger overrides the provider logger.
func WithGoogleLogger(l authclient.Logger) GoogleOption {
	return func(g *GoogleProvider) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGoogleProvider discovers Google's OIDC endpoints and returns a
// configured provider.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig, opts ...GoogleOption) (*GoogleProvider, error) {
	oidcProvider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, NewProviderError("google", KindNetwork, "discovery_failed", err)
	}

	scopes := append([]string{oidc.ScopeOpenID, "profile", "email"}, cfg.Scopes...)

	g := &GoogleProvider{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       scopes,
		},
		verifier: oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		cache:    NewMemoryTokenCache(),
		logger:   nopLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g, nil
}

func (g *GoogleProvider) Name() string { return "google" }

type callbackResult struct {
	code    string
	state   string
	errCode string
}

// SignInPopup runs the loopback authorization-code flow. Failure to open a
// local window (no listener, no opener) is reported as popup-blocked so the
// adapter can fall back to the redirect flow.
func (g *GoogleProvider) SignInPopup(ctx context.Context) (string, error) {
	addr := g.cfg.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", NewProviderError("google", KindPopupBlocked, "loopback_unavailable", err)
	}

	state, err := randomToken()
	if err != nil {
		ln.Close()
		return "", NewProviderError("google", KindUnknown, "state_generation", err)
	}
	pkce := oauth2.GenerateVerifier()

	cfg := *g.oauth
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/callback"

	authURL := cfg.AuthCodeURL(state,
		oauth2.S256ChallengeOption(pkce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	results := make(chan callbackResult, 1)

	app.Get("/callback", func(c *fiber.Ctx) error {
		res := callbackResult{
			code:    c.Query("code"),
			state:   c.Query("state"),
			errCode: c.Query("error"),
		}
		select {
		case results <- res:
		default:
		}
		if res.errCode != "" {
			return c.SendString("Sign-in failed. You can close this window.")
		}
		return c.SendString("Sign-in complete. You can close this window.")
	})

	go func() {
		if err := app.Listener(ln); err != nil {
			g.logger.Warn("callback listener stopped: %v", err)
		}
	}()
	defer app.Shutdown()

	if g.cfg.Opener == nil {
		return "", NewProviderError("google", KindPopupBlocked, "no_opener", nil)
	}
	if err := g.cfg.Opener.Open(authURL); err != nil {
		return "", NewProviderError("google", KindPopupBlocked, "window_open_failed", err)
	}

	select {
	case res := <-results:
		return g.completeCode(ctx, &cfg, res, state, pkce)
	case <-ctx.Done():
		return "", NewProviderError("google", KindCancelled, "context_cancelled", ctx.Err())
	}
}

func (g *GoogleProvider) completeCode(ctx context.Context, cfg *oauth2.Config, res callbackResult, state, pkce string) (string, error) {
	if res.errCode != "" {
		kind := KindUnknown
		if res.errCode == "access_denied" {
			kind = KindCancelled
		}
		return "", NewProviderError("google", kind, res.errCode, nil)
	}

	if res.state != state {
		return "", NewProviderError("google", KindUnknown, "state_mismatch", nil)
	}

	tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(pkce))
	if err != nil {
		return "", classifyExchangeError(err)
	}

	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return "", NewProviderError("google", KindUnknown, "missing_id_token", nil)
	}

	if _, err := g.verifier.Verify(ctx, rawID); err != nil {
		return "", NewProviderError("google", KindUnknown, "id_token_invalid", err)
	}

	return rawID, nil
}

type redirectRecord struct {
	State    string `json:"state,omitempty"`
	Verifier string `json:"verifier,omitempty"`
	RawToken string `json:"raw_token,omitempty"`
}

// BeginRedirect starts the fallback flow against the registered redirect
// URI. The eventual authorization code is delivered by the host through
// CompleteRedirect; the signed token is then held for RedirectResult.
func (g *GoogleProvider) BeginRedirect(ctx context.Context) error {
	if g.cfg.RedirectURL == "" {
		return NewProviderError("google", KindUnknown, "redirect_unconfigured", nil)
	}
	if g.cfg.Opener == nil {
		return NewProviderError("google", KindUnknown, "no_opener", nil)
	}

	state, err := randomToken()
	if err != nil {
		return NewProviderError("google", KindUnknown, "state_generation", err)
	}
	pkce := oauth2.GenerateVerifier()

	if err := g.saveRecord(ctx, redirectRecord{State: state, Verifier: pkce}); err != nil {
		return NewProviderError("google", KindUnknown, "state_persist", err)
	}

	cfg := *g.oauth
	cfg.RedirectURL = g.cfg.RedirectURL
	authURL := cfg.AuthCodeURL(state,
		oauth2.S256ChallengeOption(pkce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	if err := g.cfg.Opener.Open(authURL); err != nil {
		return NewProviderError("google", KindUnknown, "window_open_failed", err)
	}

	return nil
}

// CompleteRedirect exchanges the authorization code delivered to the
// registered redirect URI and holds the signed token for RedirectResult.
func (g *GoogleProvider) CompleteRedirect(ctx context.Context, code, state string) error {
	rec, err := g.takeRecord(ctx)
	if err != nil {
		return NewProviderError("google", KindUnknown, "state_read", err)
	}
	if rec == nil || rec.State == "" || rec.State != state {
		return NewProviderError("google", KindUnknown, "state_mismatch", nil)
	}

	cfg := *g.oauth
	cfg.RedirectURL = g.cfg.RedirectURL

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(rec.Verifier))
	if err != nil {
		return classifyExchangeError(err)
	}

	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return NewProviderError("google", KindUnknown, "missing_id_token", nil)
	}

	if _, err := g.verifier.Verify(ctx, rawID); err != nil {
		return NewProviderError("google", KindUnknown, "id_token_invalid", err)
	}

	return g.saveRecord(ctx, redirectRecord{RawToken: rawID})
}

// RedirectResult returns the held token of a completed redirect flow,
// consuming it.
func (g *GoogleProvider) RedirectResult(ctx context.Context) (string, error) {
	rec, err := g.takeRecord(ctx)
	if err != nil {
		return "", NewProviderError("google", KindUnknown, "state_read", err)
	}
	if rec == nil || rec.RawToken == "" {
		return "", nil
	}
	return rec.RawToken, nil
}

// SignOut is a no-op: the Google session lives in the user's browser and the
// client never holds a provider refresh token.
func (g *GoogleProvider) SignOut(context.Context) error {
	return nil
}

func (g *GoogleProvider) saveRecord(ctx context.Context, rec redirectRecord) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return g.cache.Save(ctx, string(buf))
}

func (g *GoogleProvider) takeRecord(ctx context.Context) (*redirectRecord, error) {
	raw, err := g.cache.Take(ctx)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	rec := &redirectRecord{}
	if err := json.Unmarshal([]byte(raw), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if stderrors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode == http.StatusTooManyRequests {
			return NewProviderError("google", KindRateLimited, "token_exchange_throttled", err)
		}
		return NewProviderError("google", KindUnknown, "token_exchange_failed", err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return NewProviderError("google", KindNetwork, "token_exchange_unreachable", err)
	}

	return NewProviderError("google", KindNetwork, "token_exchange_failed", err)
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
