// Package federated obtains signed identity assertions from third-party
// providers through an interactive pop-up flow with a redirect fallback, and
// exposes them to the session coordinator as verified profile claims plus the
// raw ID token exchanged with the backend.
package federated

import (
	"context"
)

// Provider is the third-party identity surface the adapter drives. All
// methods return raw signed ID tokens; verification and claim extraction
// happen in the adapter.
type Provider interface {
	// Name returns the provider identifier (e.g. "google").
	Name() string

	// SignInPopup runs the interactive pop-up flow and resolves with the
	// provider's signed ID token. Failures must be reported as
	// *ProviderError so the adapter can classify them.
	SignInPopup(ctx context.Context) (string, error)

	// BeginRedirect starts the redirect fallback flow. It returns before the
	// flow completes; the resulting token is recovered on a later load
	// through RedirectResult.
	BeginRedirect(ctx context.Context) error

	// RedirectResult returns the signed ID token of a completed redirect
	// flow, or empty when none is pending. The result is consumed: a second
	// call returns empty.
	RedirectResult(ctx context.Context) (string, error)

	// SignOut terminates the provider-side session, best effort.
	SignOut(ctx context.Context) error
}
