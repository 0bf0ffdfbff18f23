package federated_test

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-authclient"
	"github.com/goliatone/go-authclient/federated"
)

// FakeProvider implements federated.Provider with pluggable behavior.
type FakeProvider struct {
	name string

	PopupToken  string
	PopupErr    error
	PopupCalls  int
	BeginErr    error
	BeginCalls  int
	Result      string
	ResultErr   error
	ResultCalls int
	SignOutErr  error
}

func (p *FakeProvider) Name() string {
	if p.name == "" {
		return "fake"
	}
	return p.name
}

func (p *FakeProvider) SignInPopup(context.Context) (string, error) {
	p.PopupCalls++
	return p.PopupToken, p.PopupErr
}

func (p *FakeProvider) BeginRedirect(context.Context) error {
	p.BeginCalls++
	return p.BeginErr
}

func (p *FakeProvider) RedirectResult(context.Context) (string, error) {
	p.ResultCalls++
	raw := p.Result
	p.Result = ""
	return raw, p.ResultErr
}

func (p *FakeProvider) SignOut(context.Context) error {
	return p.SignOutErr
}

// StaticVerifier accepts any token and returns fixed claims.
type StaticVerifier struct {
	Assertion *authclient.Assertion
	Err       error
}

func (v *StaticVerifier) Verify(_ context.Context, raw string) (*authclient.Assertion, error) {
	if v.Err != nil {
		return nil, v.Err
	}
	cp := *v.Assertion
	return &cp, nil
}

func staticVerifier() *StaticVerifier {
	return &StaticVerifier{
		Assertion: &authclient.Assertion{
			SubjectID:     "sub-1",
			Email:         "test@example.com",
			Name:          "Test User",
			EmailVerified: true,
		},
	}
}

func TestAdapterSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("popup success returns a verified assertion", func(t *testing.T) {
		provider := &FakeProvider{PopupToken: "raw-id-token"}
		adapter := federated.NewAdapter(provider, federated.WithVerifier(staticVerifier()))

		assertion, err := adapter.SignIn(ctx)

		require.NoError(t, err)
		require.NotNil(t, assertion)
		assert.Equal(t, "raw-id-token", assertion.IDToken)
		assert.Equal(t, "fake", assertion.Provider)
		assert.Equal(t, "sub-1", assertion.SubjectID)
		assert.True(t, assertion.EmailVerified)
	})

	t.Run("blocked popup falls back to the redirect flow", func(t *testing.T) {
		provider := &FakeProvider{
			PopupErr: federated.NewProviderError("fake", federated.KindPopupBlocked, "popup_blocked", nil),
		}
		adapter := federated.NewAdapter(provider,
			federated.WithVerifier(staticVerifier()),
			federated.WithRequestedRole(authclient.RoleAdmin))

		assertion, err := adapter.SignIn(ctx)

		// Deferred success: the assertion arrives on the next load.
		require.NoError(t, err)
		assert.Nil(t, assertion)
		assert.Equal(t, 1, provider.BeginCalls)
	})

	t.Run("blocked popup with failing redirect surfaces the failure", func(t *testing.T) {
		provider := &FakeProvider{
			PopupErr: federated.NewProviderError("fake", federated.KindPopupBlocked, "popup_blocked", nil),
			BeginErr: federated.NewProviderError("fake", federated.KindNetwork, "unreachable", nil),
		}
		adapter := federated.NewAdapter(provider, federated.WithVerifier(staticVerifier()))

		_, err := adapter.SignIn(ctx)

		require.Error(t, err)
		var ge *goerrors.Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, federated.TextCodeNetworkFailure, ge.TextCode)
	})

	t.Run("cancellation maps to the cancelled kind", func(t *testing.T) {
		provider := &FakeProvider{
			PopupErr: federated.NewProviderError("fake", federated.KindCancelled, "popup_closed_by_user", nil),
		}
		adapter := federated.NewAdapter(provider, federated.WithVerifier(staticVerifier()))

		_, err := adapter.SignIn(ctx)

		require.Error(t, err)
		var ge *goerrors.Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, federated.TextCodeSignInCancelled, ge.TextCode)
		assert.Equal(t, "popup_closed_by_user", ge.Metadata["code"])
	})

	t.Run("rate limiting maps to the rate-limited kind", func(t *testing.T) {
		provider := &FakeProvider{
			PopupErr: federated.NewProviderError("fake", federated.KindRateLimited, "too_many_requests", nil),
		}
		adapter := federated.NewAdapter(provider, federated.WithVerifier(staticVerifier()))

		_, err := adapter.SignIn(ctx)

		var ge *goerrors.Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, federated.TextCodeRateLimited, ge.TextCode)
	})

	t.Run("unrecognized failures map to the generic kind", func(t *testing.T) {
		provider := &FakeProvider{PopupErr: errors.New("something odd")}
		adapter := federated.NewAdapter(provider, federated.WithVerifier(staticVerifier()))

		_, err := adapter.SignIn(ctx)

		var ge *goerrors.Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, federated.TextCodeSignInFailed, ge.TextCode)
	})

	t.Run("verification failure is a bad assertion", func(t *testing.T) {
		provider := &FakeProvider{PopupToken: "raw-id-token"}
		adapter := federated.NewAdapter(provider, federated.WithVerifier(&StaticVerifier{
			Assertion: &authclient.Assertion{},
			Err:       errors.New("signature mismatch"),
		}))

		_, err := adapter.SignIn(ctx)

		require.Error(t, err)
		var ge *goerrors.Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, federated.TextCodeBadAssertion, ge.TextCode)
	})
}

func TestAdapterConsumeRedirectResult(t *testing.T) {
	ctx := context.Background()

	t.Run("no pending flow resolves empty", func(t *testing.T) {
		provider := &FakeProvider{}
		adapter := federated.NewAdapter(provider, federated.WithVerifier(staticVerifier()))

		pending, err := adapter.ConsumeRedirectResult(ctx)

		require.NoError(t, err)
		assert.Nil(t, pending)
	})

	t.Run("completed flow carries the recorded role and resolves once", func(t *testing.T) {
		provider := &FakeProvider{
			PopupErr: federated.NewProviderError("fake", federated.KindPopupBlocked, "popup_blocked", nil),
			Result:   "raw-id-token",
		}
		adapter := federated.NewAdapter(provider,
			federated.WithVerifier(staticVerifier()),
			federated.WithRequestedRole(authclient.RoleAdmin))

		// Start the flow so the pending marker records the admin request.
		_, err := adapter.SignIn(ctx)
		require.NoError(t, err)

		pending, err := adapter.ConsumeRedirectResult(ctx)

		require.NoError(t, err)
		require.NotNil(t, pending)
		require.NotNil(t, pending.Assertion)
		assert.Equal(t, "raw-id-token", pending.Assertion.IDToken)
		assert.Equal(t, authclient.RoleAdmin, pending.RequestedRole)

		// A second load observes nothing.
		again, err := adapter.ConsumeRedirectResult(ctx)
		require.NoError(t, err)
		assert.Nil(t, again)
	})

	t.Run("failed completion consumes the marker", func(t *testing.T) {
		provider := &FakeProvider{
			PopupErr:  federated.NewProviderError("fake", federated.KindPopupBlocked, "popup_blocked", nil),
			ResultErr: federated.NewProviderError("fake", federated.KindNetwork, "unreachable", nil),
		}
		adapter := federated.NewAdapter(provider, federated.WithVerifier(staticVerifier()))

		_, err := adapter.SignIn(ctx)
		require.NoError(t, err)

		_, err = adapter.ConsumeRedirectResult(ctx)
		require.Error(t, err)

		// The broken flow does not replay on the next load.
		provider.ResultErr = nil
		pending, err := adapter.ConsumeRedirectResult(ctx)
		require.NoError(t, err)
		assert.Nil(t, pending)
	})
}

func TestAdapterSignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("delegates to the provider", func(t *testing.T) {
		provider := &FakeProvider{}
		adapter := federated.NewAdapter(provider)
		assert.NoError(t, adapter.SignOut(ctx))
	})

	t.Run("provider failures are normalized", func(t *testing.T) {
		provider := &FakeProvider{
			SignOutErr: federated.NewProviderError("fake", federated.KindNetwork, "unreachable", nil),
		}
		adapter := federated.NewAdapter(provider)

		err := adapter.SignOut(ctx)
		require.Error(t, err)

		var ge *goerrors.Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, federated.TextCodeNetworkFailure, ge.TextCode)
	})
}

func TestAdapterRequestedRole(t *testing.T) {
	provider := &FakeProvider{}

	assert.Equal(t, authclient.RoleUser, federated.NewAdapter(provider).RequestedRole())
	assert.Equal(t, authclient.RoleAdmin,
		federated.NewAdapter(provider, federated.WithRequestedRole(authclient.RoleAdmin)).RequestedRole())
	assert.Equal(t, authclient.RoleUser,
		federated.NewAdapter(provider, federated.WithRequestedRole("root")).RequestedRole())
}
