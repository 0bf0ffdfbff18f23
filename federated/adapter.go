package federated

import (
	"context"
	"time"

	"github.com/goliatone/go-authclient"
)

// Adapter drives a Provider through the interactive sign-in flows and
// returns verified assertions to the session coordinator. It never touches
// the credential store.
type Adapter struct {
	provider      Provider
	verifier      AssertionVerifier
	pending       PendingStore
	requestedRole authclient.Role
	logger        authclient.Logger
}

var _ authclient.FederatedSignIn = (*Adapter)(nil)

// AdapterOption configures the adapter.
type AdapterOption func(*Adapter)

// WithVerifier sets the assertion verifier. Required unless the provider
// returns pre-verified tokens in a trusted test setup.
func WithVerifier(v AssertionVerifier) AdapterOption {
	return func(a *Adapter) {
		a.verifier = v
	}
}

// WithPendingStore overrides the pending-redirect persistence.
func WithPendingStore(s PendingStore) AdapterOption {
	return func(a *Adapter) {
		if s != nil {
			a.pending = s
		}
	}
}

// WithRequestedRole tags sign-ins started through this adapter with the role
// the surface is asking for. Admin sign-in pages use RoleAdmin; everything
// else defaults to RoleUser.
func WithRequestedRole(role authclient.Role) AdapterOption {
	return func(a *Adapter) {
		a.requestedRole = authclient.NormalizeRole(string(role))
	}
}

// WithAdapterLogger overrides the adapter logger.
func WithAdapterLogger(l authclient.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter returns an adapter over the given provider.
func NewAdapter(provider Provider, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		provider:      provider,
		pending:       NewMemoryPendingStore(),
		requestedRole: authclient.RoleUser,
		logger:        nopLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// RequestedRole reports the role sign-ins from this adapter ask for.
func (a *Adapter) RequestedRole() authclient.Role {
	return a.requestedRole
}

// SignIn runs the pop-up flow. When the provider reports the pop-up was
// blocked, it transparently falls back to the redirect flow and resolves
// (nil, nil): a deferred success whose assertion arrives on the next load
// through ConsumeRedirectResult. Every other provider failure maps to the
// closed error-kind set.
func (a *Adapter) SignIn(ctx context.Context) (*authclient.Assertion, error) {
	raw, err := a.provider.SignInPopup(ctx)
	if err != nil {
		if KindOf(err) == KindPopupBlocked {
			a.logger.Info("pop-up blocked, falling back to redirect flow")
			if rerr := a.provider.BeginRedirect(ctx); rerr != nil {
				return nil, mapKind(KindOf(rerr), rerr)
			}
			if serr := a.pending.Save(ctx, PendingRedirect{
				Provider:      a.provider.Name(),
				RequestedRole: a.requestedRole,
				StartedAt:     time.Now(),
			}); serr != nil {
				a.logger.Warn("failed to persist pending redirect: %v", serr)
			}
			return nil, nil
		}
		return nil, mapKind(KindOf(err), err)
	}

	return a.verify(ctx, raw)
}

// ConsumeRedirectResult completes a pending redirect flow. It resolves at
// most once per started flow: the pending marker is consumed even when the
// completion fails, so a broken flow cannot replay forever.
func (a *Adapter) ConsumeRedirectResult(ctx context.Context) (*authclient.PendingSignIn, error) {
	rec, err := a.pending.Take(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := a.provider.RedirectResult(ctx)
	if err != nil {
		return nil, mapKind(KindOf(err), err)
	}
	if raw == "" {
		return nil, nil
	}

	assertion, err := a.verify(ctx, raw)
	if err != nil {
		return nil, err
	}

	requested := a.requestedRole
	if rec != nil {
		requested = authclient.NormalizeRole(string(rec.RequestedRole))
	}

	return &authclient.PendingSignIn{
		Assertion:     assertion,
		RequestedRole: requested,
	}, nil
}

// SignOut terminates the provider session, best effort.
func (a *Adapter) SignOut(ctx context.Context) error {
	if err := a.provider.SignOut(ctx); err != nil {
		return mapKind(KindOf(err), err)
	}
	return nil
}

// verify checks the raw token and extracts the profile claims. The verified
// assertion carries the signed token itself, which is what the backend
// exchange consumes.
func (a *Adapter) verify(ctx context.Context, raw string) (*authclient.Assertion, error) {
	if a.verifier == nil {
		return nil, ErrBadAssertion
	}

	assertion, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		clone := ErrBadAssertion.Clone()
		if clone == nil {
			clone = ErrBadAssertion
		}
		clone.Source = err
		return nil, clone
	}

	assertion.IDToken = raw
	if assertion.Provider == "" {
		assertion.Provider = a.provider.Name()
	}
	return assertion, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
